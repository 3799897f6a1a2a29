package repository

import (
	"database/sql"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// SMTPConfigRepositoryInterface defines transport configuration lookups.
type SMTPConfigRepositoryInterface interface {
	GetByID(id int) (*model.SMTPConfig, error)
	Create(cfg *model.SMTPConfig) error
}

// SMTPConfigRepository is the concrete implementation
type SMTPConfigRepository struct {
	DB *sql.DB
}

// GetByID fetches an SMTP configuration by ID. Credentials flow straight to
// the caller and are expected to live only for the scope of one send.
func (r *SMTPConfigRepository) GetByID(id int) (*model.SMTPConfig, error) {
	query := `
        SELECT id, user_id, name, host, port, username, password, encryption, from_address, from_name, created_at
        FROM smtp_configs
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var c model.SMTPConfig
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Host, &c.Port, &c.Username, &c.Password,
		&c.Encryption, &c.FromAddress, &c.FromName, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSMTPConfigNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *SMTPConfigRepository) Create(cfg *model.SMTPConfig) error {
	query := `
        INSERT INTO smtp_configs (user_id, name, host, port, username, password, encryption, from_address, from_name, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        RETURNING id, created_at
    `
	return r.DB.QueryRow(query, cfg.UserID, cfg.Name, cfg.Host, cfg.Port, cfg.Username, cfg.Password,
		cfg.Encryption, cfg.FromAddress, cfg.FromName).Scan(&cfg.ID, &cfg.CreatedAt)
}

var _ SMTPConfigRepositoryInterface = (*SMTPConfigRepository)(nil)
