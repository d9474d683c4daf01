package notifier

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// SignalNotifier implements Notifier using SIGHUP. It only works
// within a single process, so it suits single-instance deployments.
type SignalNotifier struct {
	logger   *zap.Logger
	watchers map[chan<- *Event]struct{}
	mu       sync.RWMutex
}

// NewSignalNotifier creates a new signal-based notifier
func NewSignalNotifier(ctx context.Context, logger *zap.Logger) *SignalNotifier {
	n := &SignalNotifier{
		logger:   logger.Named("notifier.signal"),
		watchers: make(map[chan<- *Event]struct{}),
	}

	go n.handleSignals(ctx)

	return n
}

func (n *SignalNotifier) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			n.logger.Info("received reload signal", zap.String("signal", sig.String()))
			_ = n.NotifyUpdate(ctx, NewEvent(nil))
		}
	}
}

// Watch implements Notifier.Watch
func (n *SignalNotifier) Watch(ctx context.Context) (<-chan *Event, error) {
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
func (n *SignalNotifier) NotifyUpdate(_ context.Context, event *Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.watchers {
		select {
		case ch <- event:
		default:
			n.logger.Warn("watcher channel is full, skipping notification")
		}
	}
	return nil
}

// CanReceive returns true if the notifier can receive updates
func (n *SignalNotifier) CanReceive() bool { return true }

// CanSend returns true if the notifier can send updates
func (n *SignalNotifier) CanSend() bool { return true }
