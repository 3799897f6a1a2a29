// internal/model/attachment_spec.go
package model

import "time"

// AttachmentSpec defines one recurring personalized PDF document generated
// per recipient of a batch. Immutable once generation has started; deleted
// by cascade with the owning batch.
type AttachmentSpec struct {
	ID               int       `db:"id" json:"id"`
	BatchID          int       `db:"batch_id" json:"batch_id"`
	FilenameTemplate string    `db:"filename_template" json:"filename_template"`
	HeaderTemplate   string    `db:"header_template" json:"header_template,omitempty"`
	BodyTemplate     string    `db:"body_template" json:"body_template"`
	FooterTemplate   string    `db:"footer_template" json:"footer_template,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
