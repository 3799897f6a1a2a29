// internal/model/tracking_event.go
package model

import "time"

// Tracking event types
const (
	TrackingEventOpen  = "open"
	TrackingEventClick = "click"
)

// TrackingEvent is an append-only record of an open or a click. Created only
// by the tracking endpoints, never mutated by the pipeline.
type TrackingEvent struct {
	ID          int       `db:"id" json:"id"`
	BatchID     int       `db:"batch_id" json:"batch_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Type        string    `db:"type" json:"type"` // open, click
	TrackedAt   time.Time `db:"tracked_at" json:"tracked_at"`
	IPAddress   string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent   string    `db:"user_agent" json:"user_agent,omitempty"`
	LinkURL     string    `db:"link_url" json:"link_url,omitempty"` // clicks only
}
