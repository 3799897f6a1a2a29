// internal/model/smtp_config.go
package model

import "time"

// SMTPConfig holds a user-owned SMTP transport configuration. Credentials are
// treated as opaque: they are loaded for the scope of a single send operation
// and never cached across sends.
type SMTPConfig struct {
	ID          int       `db:"id" json:"id"`
	UserID      int       `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Host        string    `db:"host" json:"host"`
	Port        int       `db:"port" json:"port"`
	Username    string    `db:"username" json:"username,omitempty"`
	Password    string    `db:"password" json:"-"`
	Encryption  string    `db:"encryption" json:"encryption,omitempty"` // "tls", "ssl" or empty
	FromAddress string    `db:"from_address" json:"from_address"`
	FromName    string    `db:"from_name" json:"from_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
