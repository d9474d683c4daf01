package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/common/config"
)

// Type represents the type of notifier
type Type string

const (
	// TypeSignal represents signal-based notifier
	TypeSignal Type = "signal"
	// TypeRedis represents Redis-based notifier
	TypeRedis Type = "redis"
	// TypeComposite represents composite notifier
	TypeComposite Type = "composite"
)

// NewNotifier creates a new notifier based on the configuration
func NewNotifier(ctx context.Context, logger *zap.Logger, cfg *config.NotifierConfig) (Notifier, error) {
	role := config.NotifierRole(cfg.Role)
	if role == "" {
		role = config.RoleBoth
	}

	switch Type(cfg.Type) {
	case TypeSignal:
		return NewSignalNotifier(ctx, logger), nil
	case TypeRedis:
		return NewRedisNotifier(logger, cfg.Redis, role)
	case TypeComposite:
		notifiers := []Notifier{NewSignalNotifier(ctx, logger)}
		if cfg.Redis.Addr != "" {
			redisNotifier, err := NewRedisNotifier(logger, cfg.Redis, role)
			if err != nil {
				return nil, err
			}
			notifiers = append(notifiers, redisNotifier)
		}
		return NewCompositeNotifier(ctx, logger, notifiers...), nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
	}
}
