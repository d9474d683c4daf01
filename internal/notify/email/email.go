// Package email sends transactional mail through the SMTP relay
// configured in system configs.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/sysconfig"
)

// ErrDisabled is returned when email delivery is switched off in the
// system configs.
var ErrDisabled = errors.New("email delivery is disabled")

// Sender delivers mail using the current sysconfig snapshot. Settings
// are read per send, so an admin config change applies to the next
// message without a restart.
type Sender struct {
	configs *sysconfig.Loader
	logger  *zap.Logger
}

// NewSender creates a new email sender
func NewSender(configs *sysconfig.Loader, logger *zap.Logger) *Sender {
	return &Sender{configs: configs, logger: logger.Named("email")}
}

// Send delivers a plain-text message to a single recipient.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	cfg := s.configs.Current().Email
	if !cfg.Enabled {
		return ErrDisabled
	}

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n"+
		"%s",
		cfg.From, to, subject, body))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)

	var err error
	if cfg.Secure {
		err = s.sendTLS(addr, cfg.Host, auth, cfg.From, to, msg)
	} else {
		err = smtp.SendMail(addr, auth, cfg.From, []string{to}, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// sendTLS speaks SMTP over an implicit TLS connection, the mode most
// providers expose on port 465 where STARTTLS is unavailable.
func (s *Sender) sendTLS(addr, host string, auth smtp.Auth, from, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
