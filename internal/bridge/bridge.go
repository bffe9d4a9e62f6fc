// Package bridge translates task lifecycle events from the execution
// pipeline into progress session mutations, scoped to one correlation
// channel at a time.
package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/execution"
	"github.com/jmcadams/pulse/internal/progress"
)

// Bridge subscribes to the four task lifecycle kinds on one channel and
// forwards them to its session. Events that do not apply to the session's
// current mode are ignored, and out-of-order or duplicate terminal events
// are tolerated through upserts (last-write-wins) rather than rejected.
type Bridge struct {
	bus     execution.Bus
	session *progress.Session
	logger  *zap.Logger

	mu      sync.Mutex
	channel string
	subs    []execution.Subscription
	closed  bool
}

// New wires a Bridge to its bus and session. The bridge is idle until
// Enable is called.
func New(bus execution.Bus, session *progress.Session, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		bus:     bus,
		session: session,
		logger:  logger,
	}
}

// Enable subscribes the bridge to channel, first tearing down any previous
// subscription set. Calling Enable repeatedly with the same channel is safe
// and leaves exactly one active subscription set; a partial failure rolls
// the whole set back so the bridge is never half-subscribed.
func (b *Bridge) Enable(channel string) error {
	if channel == "" {
		return fmt.Errorf("%w: channel is required", progress.ErrInvalidArgument)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return progress.ErrDisposed
	}
	b.teardownLocked()

	subs := make([]execution.Subscription, 0, len(execution.Kinds()))
	for _, kind := range execution.Kinds() {
		sub, err := b.bus.Subscribe(channel, kind, b.handle)
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return fmt.Errorf("subscribe %s on %q: %w", kind, channel, err)
		}
		subs = append(subs, sub)
	}
	b.channel = channel
	b.subs = subs
	return nil
}

// Disable unsubscribes everything. It is safe to call when nothing is
// subscribed and safe to call repeatedly.
func (b *Bridge) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardownLocked()
}

// Channel returns the currently enabled channel, or "" when disabled.
func (b *Bridge) Channel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channel
}

// Close disables the bridge permanently; Enable afterwards fails with
// ErrDisposed.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardownLocked()
	b.closed = true
}

func (b *Bridge) teardownLocked() {
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
	b.channel = ""
}

// handle maps one external event onto the session. Session errors stay here:
// a misdelivered or late event must never abort the subscription.
func (b *Bridge) handle(evt execution.Event) {
	mode := b.session.Mode()
	var err error
	switch evt.Kind {
	case execution.KindTaskStarted:
		if mode == progress.ModeStepped {
			err = b.session.UpsertStep(evt.TaskName, 0, progress.StatusInProgress)
		}
	case execution.KindTaskProgress:
		switch {
		case mode == progress.ModeStepped && evt.StepPercent != nil:
			err = b.session.UpsertStep(evt.TaskName, *evt.StepPercent, progress.StatusInProgress)
		case mode == progress.ModeNormal && evt.OverallPercent != nil:
			err = b.session.UpdateProgress(*evt.OverallPercent, evt.Message)
		}
	case execution.KindTaskCompleted:
		if mode == progress.ModeStepped {
			err = b.session.UpsertStep(evt.TaskName, 100, progress.StatusCompleted)
		}
	case execution.KindTaskFailed:
		if mode == progress.ModeStepped {
			err = b.session.UpsertStep(evt.TaskName, 0, progress.StatusFailed)
		}
	default:
		b.logger.Warn("dropping event of unknown kind",
			zap.String("kind", string(evt.Kind)),
			zap.String("task", evt.TaskName))
		return
	}
	if err != nil {
		b.logger.Warn("event did not apply to session",
			zap.String("kind", string(evt.Kind)),
			zap.String("task", evt.TaskName),
			zap.Error(err))
	}
}
