package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HubConfig controls buffering and delivery for the Hub.
//   - BufferSize: size of the internal snapshot channel (default 256).
//   - Logger: optional structured logger used for warnings.
type HubConfig struct {
	BufferSize int
	Logger     *zap.Logger
}

const (
	defaultHubBuffer    = 256
	coalesceLogInterval = 5 * time.Second
)

// Hub fans session snapshots out to registered observers. Publish never
// blocks the mutator: snapshots queue on a bounded channel consumed by a
// single publisher goroutine, which preserves mutation order per observer.
// Under backpressure the oldest queued snapshot is discarded so the latest
// state always survives. Structurally identical consecutive snapshots are
// delivered once.
type Hub struct {
	cfg    HubConfig
	logger *zap.Logger

	snapshots chan Snapshot
	stopCh    chan struct{}
	doneCh    chan struct{}

	obsMu     sync.RWMutex
	observers map[uint64]Observer
	nextObsID uint64

	coalesceLimiter rateLimiter
	coalesced       atomic.Int64
	closed          atomic.Bool
	closeOnce       sync.Once
}

// Subscription identifies one registered observer.
type Subscription struct {
	hub *Hub
	id  uint64
}

// Unsubscribe removes the observer. It is safe to call concurrently with
// Publish and safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.hub == nil {
		return
	}
	s.hub.obsMu.Lock()
	delete(s.hub.observers, s.id)
	s.hub.obsMu.Unlock()
}

// NewHub initializes a Hub and starts the publisher goroutine. The returned
// Hub is immediately ready to accept snapshots and subscriptions.
func NewHub(cfg HubConfig) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultHubBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:             cfg,
		logger:          logger,
		snapshots:       make(chan Snapshot, cfg.BufferSize),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		observers:       make(map[uint64]Observer),
		coalesceLimiter: rateLimiter{interval: coalesceLogInterval},
	}
	go h.run()
	return h
}

// Subscribe registers an observer and returns its Subscription. Observers
// registered mid-stream receive only snapshots published after registration.
func (h *Hub) Subscribe(obs Observer) Subscription {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	h.nextObsID++
	id := h.nextObsID
	h.observers[id] = obs
	return Subscription{hub: h, id: id}
}

// Publish enqueues a snapshot for delivery. It never blocks; when the buffer
// is full the oldest queued snapshot is dropped in favor of the new one and
// a rate-limited warning is logged.
func (h *Hub) Publish(snap Snapshot) {
	if h == nil || h.closed.Load() {
		return
	}
	for {
		select {
		case h.snapshots <- snap:
			return
		default:
		}
		select {
		case <-h.snapshots:
			h.coalesced.Add(1)
			if h.coalesceLimiter.Allow(time.Now()) {
				count := h.coalesced.Swap(0)
				h.logger.Warn("snapshots coalesced due to backpressure", zap.Int64("coalesced", count))
			}
		default:
		}
	}
}

// Close drains queued snapshots, delivers them, and blocks until the
// publisher goroutine exits. It is safe to call multiple times; subsequent
// calls are ignored once shutdown begins.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification hub close wait: %w", ErrCanceled)
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	var last *Snapshot
	for {
		select {
		case snap := <-h.snapshots:
			last = h.deliver(snap, last)
		case <-h.stopCh:
			for {
				select {
				case snap := <-h.snapshots:
					last = h.deliver(snap, last)
				default:
					return
				}
			}
		}
	}
}

// deliver fans one snapshot out, skipping it when structurally equal to the
// previous delivery. A single observer is invoked inline; multiple observers
// run concurrently, and delivery does not return until every observer has,
// so each observer sees snapshots strictly in publish order.
func (h *Hub) deliver(snap Snapshot, last *Snapshot) *Snapshot {
	if last != nil && snap.seq != 0 && snap.seq < last.seq {
		return last
	}
	if last != nil && snap.Equal(*last) {
		if snap.seq > last.seq {
			last.seq = snap.seq
		}
		return last
	}
	h.obsMu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for _, obs := range h.observers {
		targets = append(targets, obs)
	}
	h.obsMu.RUnlock()

	switch len(targets) {
	case 0:
	case 1:
		h.notifyOne(targets[0], snap)
	default:
		var wg sync.WaitGroup
		for _, obs := range targets {
			wg.Add(1)
			go func(o Observer) {
				defer wg.Done()
				h.notifyOne(o, snap)
			}(obs)
		}
		wg.Wait()
	}
	return &snap
}

func (h *Hub) notifyOne(obs Observer, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("progress observer panicked", zap.Any("panic", r))
		}
	}()
	obs.Notify(snap)
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
