// Package sysconfig projects the system_configs table into typed
// runtime settings for storage, SMS and email, with hot reload.
package sysconfig

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/sysconfig/notifier"
)

// Keys recognized in system_configs. Unknown keys are kept in the
// table but ignored by the typed views.
const (
	KeyStorageType       = "storage_type"
	KeyR2AccountID       = "r2_account_id"
	KeyR2AccessKeyID     = "r2_access_key_id"
	KeyR2SecretAccessKey = "r2_secret_access_key"
	KeyR2Bucket          = "r2_bucket"
	KeyR2PublicURL       = "r2_public_url"

	KeySMSEnabled  = "sms_enabled"
	KeySMSUsername = "sms_username"
	KeySMSPassword = "sms_password"
	KeySMSSign     = "sms_sign"

	KeyEmailEnabled  = "email_enabled"
	KeyEmailHost     = "email_host"
	KeyEmailPort     = "email_port"
	KeyEmailSecure   = "email_secure"
	KeyEmailUser     = "email_user"
	KeyEmailPassword = "email_password"
	KeyEmailFrom     = "email_from"
)

// StorageConfig selects and configures the avatar storage backend.
type StorageConfig struct {
	Type              string `json:"storage_type"`
	R2AccountID       string `json:"r2_account_id"`
	R2AccessKeyID     string `json:"r2_access_key_id"`
	R2SecretAccessKey string `json:"-"`
	R2Bucket          string `json:"r2_bucket"`
	R2PublicURL       string `json:"r2_public_url"`
}

// SMSConfig configures the SMS provider.
type SMSConfig struct {
	Enabled  bool   `json:"sms_enabled"`
	Username string `json:"sms_username"`
	Password string `json:"-"`
	Sign     string `json:"sms_sign"`
}

// EmailConfig configures the outbound SMTP relay.
type EmailConfig struct {
	Enabled  bool   `json:"email_enabled"`
	Host     string `json:"email_host"`
	Port     int    `json:"email_port"`
	Secure   bool   `json:"email_secure"`
	User     string `json:"email_user"`
	Password string `json:"-"`
	From     string `json:"email_from"`
}

// Snapshot is one immutable view of the runtime settings. Readers get
// the whole snapshot at once; a reload swaps in a fresh one.
type Snapshot struct {
	Storage StorageConfig
	SMS     SMSConfig
	Email   EmailConfig
}

// Loader reads system_configs into a snapshot and refreshes it when a
// reload notification arrives.
type Loader struct {
	db       database.Database
	logger   *zap.Logger
	notifier notifier.Notifier
	current  atomic.Pointer[Snapshot]
}

// NewLoader creates a loader. ntf may be nil when no cross-instance
// reload is wired.
func NewLoader(db database.Database, logger *zap.Logger, ntf notifier.Notifier) *Loader {
	l := &Loader{db: db, logger: logger.Named("sysconfig"), notifier: ntf}
	l.current.Store(&Snapshot{Storage: StorageConfig{Type: "local"}})
	return l
}

// Current returns the latest snapshot. It never returns nil.
func (l *Loader) Current() *Snapshot {
	return l.current.Load()
}

// Load reads the table and swaps in a fresh snapshot.
func (l *Loader) Load(ctx context.Context) error {
	rows, err := l.db.ListSystemConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load system configs: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.ConfigKey] = row.ConfigValue
	}

	snap := &Snapshot{
		Storage: StorageConfig{
			Type:              getString(values, KeyStorageType, "local"),
			R2AccountID:       values[KeyR2AccountID],
			R2AccessKeyID:     values[KeyR2AccessKeyID],
			R2SecretAccessKey: values[KeyR2SecretAccessKey],
			R2Bucket:          values[KeyR2Bucket],
			R2PublicURL:       values[KeyR2PublicURL],
		},
		SMS: SMSConfig{
			Enabled:  parseBool(values[KeySMSEnabled]),
			Username: values[KeySMSUsername],
			Password: values[KeySMSPassword],
			Sign:     values[KeySMSSign],
		},
		Email: EmailConfig{
			Enabled:  parseBool(values[KeyEmailEnabled]),
			Host:     values[KeyEmailHost],
			Port:     parseInt(values[KeyEmailPort], 465),
			Secure:   parseBool(values[KeyEmailSecure]),
			User:     values[KeyEmailUser],
			Password: values[KeyEmailPassword],
			From:     values[KeyEmailFrom],
		},
	}
	l.current.Store(snap)
	l.logger.Info("system configs loaded", zap.Int("keys", len(values)))
	return nil
}

// WatchReload reloads the snapshot whenever the notifier fires. It
// blocks until ctx is done, so callers run it in a goroutine.
func (l *Loader) WatchReload(ctx context.Context) {
	if l.notifier == nil || !l.notifier.CanReceive() {
		return
	}
	ch, err := l.notifier.Watch(ctx)
	if err != nil {
		l.logger.Error("failed to watch for config updates", zap.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := l.Load(ctx); err != nil {
				l.logger.Error("failed to reload system configs", zap.Error(err))
			}
		}
	}
}

// NotifyReload reloads locally and tells peer instances to do the
// same.
func (l *Loader) NotifyReload(ctx context.Context, keys []string) error {
	if err := l.Load(ctx); err != nil {
		return err
	}
	if l.notifier == nil || !l.notifier.CanSend() {
		return nil
	}
	return l.notifier.NotifyUpdate(ctx, notifier.NewEvent(keys))
}

func getString(values map[string]string, key, fallback string) string {
	if v, ok := values[key]; ok && v != "" {
		return v
	}
	return fallback
}

func parseBool(value string) bool {
	return value == "true" || value == "1"
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
