// Package memory provides the in-process event bus used by tests, the demo
// command, and any caller that runs tasks and reports progress inside one
// process.
package memory

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/execution"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Clock abstracts wall-clock reads for event timestamping.
type Clock interface {
	Now() time.Time
}

// Bus is a synchronous in-memory event bus. Publish delivers to every
// matching handler in subscription order on the caller's goroutine, which
// preserves per-task event ordering without any coordination on the
// subscriber side. Handler panics are contained and logged.
type Bus struct {
	logger *zap.Logger
	clock  Clock

	mu     sync.RWMutex
	subs   map[subKey]map[uint64]execution.Handler
	nextID uint64
	closed bool
}

type subKey struct {
	channel string
	kind    execution.Kind
}

// New constructs a Bus. clock may be nil, in which case events that arrive
// without a timestamp keep their zero TS.
func New(logger *zap.Logger, clock Clock) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger,
		clock:  clock,
		subs:   make(map[subKey]map[uint64]execution.Handler),
	}
}

// Subscribe registers h for events matching channel and kind.
func (b *Bus) Subscribe(channel string, kind execution.Kind, h execution.Handler) (execution.Subscription, error) {
	if channel == "" {
		return nil, errors.New("channel is required")
	}
	if h == nil {
		return nil, errors.New("handler is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	key := subKey{channel: channel, kind: kind}
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]execution.Handler)
	}
	b.nextID++
	id := b.nextID
	b.subs[key][id] = h
	return &subscription{bus: b, key: key, id: id}, nil
}

// Publish validates evt, stamps its timestamp, and delivers it synchronously
// to all matching handlers. Invalid events are rejected so emitters notice
// contract violations early; subscribers never see them.
func (b *Bus) Publish(evt execution.Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	if evt.TS.IsZero() && b.clock != nil {
		evt.TS = b.clock.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	key := subKey{channel: evt.Channel, kind: evt.Kind}
	ids := make([]uint64, 0, len(b.subs[key]))
	for id := range b.subs[key] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]execution.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[key][id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(h, evt)
	}
	return nil
}

// Subscribers reports the number of active handlers for channel and kind.
// It exists for inspection in tests and diagnostics.
func (b *Bus) Subscribers(channel string, kind execution.Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[subKey{channel: channel, kind: kind}])
}

// Close rejects further publishes and subscriptions and drops all handlers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[subKey]map[uint64]execution.Handler)
}

func (b *Bus) invoke(h execution.Handler, evt execution.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event handler panicked",
				zap.String("channel", evt.Channel),
				zap.String("kind", string(evt.Kind)),
				zap.Any("panic", r))
		}
	}()
	h(evt)
}

type subscription struct {
	bus  *Bus
	key  subKey
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if handlers := s.bus.subs[s.key]; handlers != nil {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.bus.subs, s.key)
			}
		}
	})
}
