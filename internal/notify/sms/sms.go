// Package sms sends text messages through the provider configured in
// system configs.
package sms

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/sysconfig"
)

// ErrDisabled is returned when SMS delivery is switched off in the
// system configs.
var ErrDisabled = errors.New("sms delivery is disabled")

const defaultGateway = "https://api.smsbao.com/sms"

// provider status codes, per the gateway API
var statusMessages = map[string]string{
	"30": "invalid password",
	"40": "invalid account",
	"41": "insufficient balance",
	"43": "ip address restricted",
	"50": "content contains forbidden words",
	"51": "invalid phone number",
}

// Sender delivers SMS using the current sysconfig snapshot. Settings
// are read per send, so an admin config change applies to the next
// message without a restart.
type Sender struct {
	configs *sysconfig.Loader
	logger  *zap.Logger
	client  *http.Client
	gateway string
}

// NewSender creates a new SMS sender
func NewSender(configs *sysconfig.Loader, logger *zap.Logger) *Sender {
	return &Sender{
		configs: configs,
		logger:  logger.Named("sms"),
		client:  &http.Client{Timeout: 10 * time.Second},
		gateway: defaultGateway,
	}
}

// Send delivers one message to a phone number. The configured sign is
// prepended to the content as the provider requires.
func (s *Sender) Send(ctx context.Context, phone, content string) error {
	cfg := s.configs.Current().SMS
	if !cfg.Enabled {
		return ErrDisabled
	}

	sum := md5.Sum([]byte(cfg.Password))
	query := url.Values{}
	query.Set("u", cfg.Username)
	query.Set("p", hex.EncodeToString(sum[:]))
	query.Set("m", phone)
	query.Set("c", fmt.Sprintf("【%s】%s", cfg.Sign, content))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.gateway+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return fmt.Errorf("read sms response: %w", err)
	}
	code := string(body)
	if code != "0" {
		msg, ok := statusMessages[code]
		if !ok {
			msg = "unknown error"
		}
		return fmt.Errorf("sms gateway rejected message: %s (code %s)", msg, code)
	}
	s.logger.Info("sms sent", zap.String("phone", phone))
	return nil
}
