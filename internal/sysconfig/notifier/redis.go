package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/common/config"
)

// RedisNotifier implements Notifier using a Redis stream
type RedisNotifier struct {
	logger     *zap.Logger
	client     redis.UniversalClient
	streamName string
	role       config.NotifierRole
}

// NewRedisNotifier creates a new Redis-based notifier
func NewRedisNotifier(logger *zap.Logger, cfg config.NotifierRedisConfig, role config.NotifierRole) (*RedisNotifier, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{
		logger:     logger.Named("notifier.redis"),
		client:     client,
		streamName: cfg.Stream,
		role:       role,
	}, nil
}

// Watch implements Notifier.Watch
func (r *RedisNotifier) Watch(ctx context.Context) (<-chan *Event, error) {
	if !r.CanReceive() {
		return nil, ErrNotReceiver
	}

	ch := make(chan *Event, 10)

	go func() {
		defer close(ch)

		// Start from the latest message; every instance reads
		// independently so each one sees every reload.
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
				streams, err := r.client.XRead(ctx, &redis.XReadArgs{
					Streams: []string{r.streamName, lastID},
					Count:   1,
					Block:   1 * time.Second,
				}).Result()

				if err != nil {
					if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
						r.logger.Error("failed to read from stream", zap.Error(err))
					}
					continue
				}

				for _, stream := range streams {
					for _, message := range stream.Messages {
						lastID = message.ID

						data, exists := message.Values["event"]
						if !exists {
							continue
						}
						var event Event
						if err := json.Unmarshal([]byte(data.(string)), &event); err != nil {
							r.logger.Error("failed to unmarshal event", zap.Error(err))
							continue
						}
						select {
						case ch <- &event:
							r.logger.Debug("reload notification received",
								zap.String("messageID", message.ID))
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return ch, nil
}

// NotifyUpdate implements Notifier.NotifyUpdate
func (r *RedisNotifier) NotifyUpdate(ctx context.Context, event *Event) error {
	if !r.CanSend() {
		return ErrNotSender
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Keep only the latest message; receivers reload the full
	// snapshot, so intermediate events carry no extra information.
	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamName,
		MaxLen: 1,
		Approx: false,
		Values: map[string]interface{}{
			"event":     string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add message to stream: %w", err)
	}
	return nil
}

// CanReceive returns true if the notifier can receive updates
func (r *RedisNotifier) CanReceive() bool {
	return r.role == config.RoleReceiver || r.role == config.RoleBoth
}

// CanSend returns true if the notifier can send updates
func (r *RedisNotifier) CanSend() bool {
	return r.role == config.RoleSender || r.role == config.RoleBoth
}
