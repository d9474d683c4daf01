package notifier

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// CompositeNotifier implements Notifier by combining multiple notifiers
type CompositeNotifier struct {
	logger    *zap.Logger
	notifiers []Notifier
	mu        sync.RWMutex
	watchers  map[chan<- *Event]struct{}
}

// NewCompositeNotifier creates a new composite notifier
func NewCompositeNotifier(ctx context.Context, logger *zap.Logger, notifiers ...Notifier) *CompositeNotifier {
	n := &CompositeNotifier{
		logger:    logger.Named("notifier.composite"),
		notifiers: notifiers,
		watchers:  make(map[chan<- *Event]struct{}),
	}

	if n.CanReceive() {
		go n.watch(ctx)
	}

	return n
}

func (n *CompositeNotifier) watch(ctx context.Context) {
	for _, underlying := range n.notifiers {
		if !underlying.CanReceive() {
			continue
		}

		underlyingCh, err := underlying.Watch(ctx)
		if err != nil {
			n.logger.Error("failed to watch underlying notifier", zap.Error(err))
			continue
		}

		go func(ch <-chan *Event) {
			for {
				select {
				case event, ok := <-ch:
					if !ok {
						return
					}
					n.notifyWatchers(event)
				case <-ctx.Done():
					return
				}
			}
		}(underlyingCh)
	}
}

func (n *CompositeNotifier) notifyWatchers(event *Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for watcher := range n.watchers {
		select {
		case watcher <- event:
		default:
			n.logger.Warn("watcher channel is full, skipping notification")
		}
	}
}

// Watch implements Notifier.Watch
func (n *CompositeNotifier) Watch(ctx context.Context) (<-chan *Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan *Event, 10)
	n.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watchers, ch)
		close(ch)
	}()

	return ch, nil
}

// NotifyUpdate implements Notifier.NotifyUpdate
func (n *CompositeNotifier) NotifyUpdate(ctx context.Context, event *Event) error {
	var lastErr error
	for _, underlying := range n.notifiers {
		if !underlying.CanSend() {
			continue
		}
		if err := underlying.NotifyUpdate(ctx, event); err != nil {
			lastErr = err
			n.logger.Error("failed to notify update", zap.Error(err))
		}
	}
	return lastErr
}

// CanReceive returns true if any underlying notifier can receive
func (n *CompositeNotifier) CanReceive() bool {
	for _, underlying := range n.notifiers {
		if underlying.CanReceive() {
			return true
		}
	}
	return false
}

// CanSend returns true if any underlying notifier can send
func (n *CompositeNotifier) CanSend() bool {
	for _, underlying := range n.notifiers {
		if underlying.CanSend() {
			return true
		}
	}
	return false
}
