// Package notifier propagates system config reloads between running
// instances.
package notifier

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotReceiver = errors.New("notifier cannot receive updates")
	ErrNotSender   = errors.New("notifier cannot send updates")
)

// Event describes one reload. Keys lists the config keys that
// changed; receivers reload the whole snapshot regardless, so an
// empty list is valid.
type Event struct {
	Keys      []string  `json:"keys"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(keys []string) *Event {
	return &Event{Keys: keys, UpdatedAt: time.Now()}
}

// Notifier propagates config reload events. A notifier may be a
// sender, a receiver, or both, depending on the configured role.
type Notifier interface {
	// Watch returns a channel that receives an event whenever the
	// system configs should be reloaded
	Watch(ctx context.Context) (<-chan *Event, error)

	// NotifyUpdate publishes a reload event
	NotifyUpdate(ctx context.Context, event *Event) error

	// CanReceive returns true if the notifier can receive updates
	CanReceive() bool

	// CanSend returns true if the notifier can send updates
	CanSend() bool
}
