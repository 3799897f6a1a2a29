package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// TrackingEventRepositoryInterface records opens and clicks. Events are
// append-only; nothing in the pipeline ever mutates them.
type TrackingEventRepositoryInterface interface {
	Create(ev *model.TrackingEvent) error
	ListByBatch(batchID int) ([]*model.TrackingEvent, error)
}

type TrackingEventRepository struct {
	DB *sql.DB
}

func (r *TrackingEventRepository) Create(ev *model.TrackingEvent) error {
	if ev.TrackedAt.IsZero() {
		ev.TrackedAt = time.Now()
	}
	query := `
        INSERT INTO tracking_events (batch_id, recipient_id, type, tracked_at, ip_address, user_agent, link_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, ev.BatchID, ev.RecipientID, ev.Type, ev.TrackedAt,
		ev.IPAddress, ev.UserAgent, ev.LinkURL).Scan(&ev.ID)
}

func (r *TrackingEventRepository) ListByBatch(batchID int) ([]*model.TrackingEvent, error) {
	query := `
        SELECT id, batch_id, recipient_id, type, tracked_at, ip_address, user_agent, link_url
        FROM tracking_events
        WHERE batch_id=$1
        ORDER BY tracked_at DESC
    `
	rows, err := r.DB.Query(query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*model.TrackingEvent{}
	for rows.Next() {
		ev := &model.TrackingEvent{}
		if err := rows.Scan(&ev.ID, &ev.BatchID, &ev.RecipientID, &ev.Type, &ev.TrackedAt,
			&ev.IPAddress, &ev.UserAgent, &ev.LinkURL); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

var _ TrackingEventRepositoryInterface = (*TrackingEventRepository)(nil)
