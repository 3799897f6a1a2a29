// internal/model/batch.go
package model

import "time"

// Batch statuses
const (
	BatchStatusDraft      = "draft"
	BatchStatusGenerating = "generating"
	BatchStatusGenerated  = "generated"
	BatchStatusSending    = "sending"
	BatchStatusSent       = "sent"
	BatchStatusFailed     = "failed"
)

type Batch struct {
	ID                int        `db:"id" json:"id"`
	UserID            int        `db:"user_id" json:"user_id"`
	SMTPConfigID      int        `db:"smtp_config_id" json:"smtp_config_id"`
	Name              string     `db:"name" json:"name"`
	CSVFilePath       string     `db:"csv_file_path" json:"csv_file_path"`
	SubjectTemplate   string     `db:"subject_template" json:"subject_template"`
	BodyTemplate      string     `db:"body_template" json:"body_template"`
	ToTemplate        string     `db:"to_template" json:"to_template"`
	CcTemplate        string     `db:"cc_template" json:"cc_template,omitempty"`
	BccTemplate       string     `db:"bcc_template" json:"bcc_template,omitempty"`
	AttachmentPaths   []string   `db:"attachment_paths" json:"attachment_paths,omitempty"`
	HasPersonalized   bool       `db:"has_personalized_attachments" json:"has_personalized_attachments"`
	TrackingEnabled   bool       `db:"tracking_enabled" json:"tracking_enabled"`
	Status            string     `db:"status" json:"status"`
	TotalRecipients   int        `db:"total_recipients" json:"total_recipients"`
	GeneratedCount    int        `db:"generated_count" json:"generated_count"`
	SentCount         int        `db:"sent_count" json:"sent_count"`
	FailedCount       int        `db:"failed_count" json:"failed_count"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
