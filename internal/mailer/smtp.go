// internal/mailer/smtp.go
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// Attachment is one file to attach, already loaded from storage.
type Attachment struct {
	Name string
	Data []byte
}

// Outbound is a fully resolved message handed to the transport.
type Outbound struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Transport delivers one outbound message using the given SMTP configuration.
// Implementations must scope credentials to the single send: the dialer is
// built from cfg on every call and discarded, never cached across sends.
type Transport interface {
	Send(ctx context.Context, cfg *model.SMTPConfig, msg Outbound) error
}

// SMTPTransport sends through a per-call go-mail dialer.
type SMTPTransport struct {
	Timeout time.Duration
}

func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &SMTPTransport{Timeout: timeout}
}

func (t *SMTPTransport) Send(ctx context.Context, cfg *model.SMTPConfig, msg Outbound) error {
	m := mail.NewMessage()

	from := cfg.FromAddress
	if cfg.FromName != "" {
		from = m.FormatAddress(cfg.FromAddress, cfg.FromName)
	}
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	for _, att := range msg.Attachments {
		data := att.Data
		m.Attach(att.Name, mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	// The dialer lives for exactly one send operation.
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = t.Timeout
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}

	switch cfg.Encryption {
	case "ssl":
		d.SSL = true
	case "tls":
		// STARTTLS negotiated by go-mail
	default:
		// no explicit encryption requested; go-mail still upgrades when offered
	}

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			log.Printf("⚠️ smtp send via %s:%d failed: %v", cfg.Host, cfg.Port, err)
			return fmt.Errorf("smtp send: %w", err)
		}
	}
	return nil
}

var _ Transport = (*SMTPTransport)(nil)
