package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// MessageRepositoryInterface defines the message persistence used by the
// generation and dispatch services.
type MessageRepositoryInterface interface {
	Create(msg *model.Message) error
	GetByID(id int) (*model.Message, error)
	ListPendingByBatch(batchID int) ([]*model.Message, error)
	DeleteByBatch(batchID int) error
	MarkSent(id int, sentAt time.Time) error
	MarkFailed(id int, errorText string) error
	CountByStatus(batchID int) (map[string]int, error)
}

type MessageRepository struct {
	DB *sql.DB
}

// Create inserts a new message and fills in its generated ID.
func (r *MessageRepository) Create(msg *model.Message) error {
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO messages
        (batch_id, recipient_id, to_address, cc_address, bcc_address, subject, body,
         attachments, status, sent_at, error_text, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		msg.BatchID,
		msg.RecipientID,
		msg.ToAddress,
		msg.CcAddress,
		msg.BccAddress,
		msg.Subject,
		msg.Body,
		attachments,
		msg.Status,
		msg.SentAt,
		msg.ErrorText,
		msg.CreatedAt,
		msg.UpdatedAt,
	).Scan(&msg.ID)
}

// GetByID fetches a message by its ID, nil when absent.
func (r *MessageRepository) GetByID(id int) (*model.Message, error) {
	query := `
        SELECT id, batch_id, recipient_id, to_address, cc_address, bcc_address, subject, body,
               attachments, status, sent_at, error_text, created_at, updated_at
        FROM messages
        WHERE id=$1
    `
	msg, err := scanMessage(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// ListPendingByBatch returns the batch's messages still in 'pending', in
// generation order, so a re-invoked dispatch only picks up remaining work.
func (r *MessageRepository) ListPendingByBatch(batchID int) ([]*model.Message, error) {
	query := `
        SELECT id, batch_id, recipient_id, to_address, cc_address, bcc_address, subject, body,
               attachments, status, sent_at, error_text, created_at, updated_at
        FROM messages
        WHERE batch_id=$1 AND status=$2
        ORDER BY id
    `
	rows, err := r.DB.Query(query, batchID, model.MessageStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteByBatch purges every message of a batch. Regeneration starts from a
// clean slate so repeated generate calls never accumulate duplicates.
func (r *MessageRepository) DeleteByBatch(batchID int) error {
	_, err := r.DB.Exec(`DELETE FROM messages WHERE batch_id=$1`, batchID)
	return err
}

func (r *MessageRepository) MarkSent(id int, sentAt time.Time) error {
	query := `UPDATE messages SET status=$1, sent_at=$2, error_text='', updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, model.MessageStatusSent, sentAt, id)
	return err
}

func (r *MessageRepository) MarkFailed(id int, errorText string) error {
	query := `UPDATE messages SET status=$1, error_text=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, model.MessageStatusFailed, errorText, id)
	return err
}

func (r *MessageRepository) CountByStatus(batchID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM messages WHERE batch_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var msg model.Message
	var attachments []byte
	err := row.Scan(
		&msg.ID, &msg.BatchID, &msg.RecipientID, &msg.ToAddress, &msg.CcAddress, &msg.BccAddress,
		&msg.Subject, &msg.Body, &attachments, &msg.Status, &msg.SentAt, &msg.ErrorText,
		&msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
