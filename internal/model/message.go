// internal/model/message.go
package model

import "time"

// Message statuses
const (
	MessageStatusPending = "pending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"
)

type Message struct {
	ID          int        `db:"id" json:"id"`
	BatchID     int        `db:"batch_id" json:"batch_id"`
	RecipientID string     `db:"recipient_id" json:"recipient_id"` // opaque per-recipient identifier used in tracking URLs
	ToAddress   string     `db:"to_address" json:"to_address"`
	CcAddress   string     `db:"cc_address" json:"cc_address,omitempty"`
	BccAddress  string     `db:"bcc_address" json:"bcc_address,omitempty"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	Attachments []string   `db:"attachments" json:"attachments,omitempty"`
	Status      string     `db:"status" json:"status"` // pending, sent, failed
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ErrorText   string     `db:"error_text" json:"error_text,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
