// Package registry tracks live progress sessions by correlation id, wiring
// each one to its history window, execution bridge, and optional metrics and
// renderer observers.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/bridge"
	"github.com/jmcadams/pulse/internal/execution"
	"github.com/jmcadams/pulse/internal/history"
	"github.com/jmcadams/pulse/internal/id"
	"github.com/jmcadams/pulse/internal/id/uuid"
	"github.com/jmcadams/pulse/internal/metrics"
	"github.com/jmcadams/pulse/internal/progress"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Entry bundles one session with its collaborators.
type Entry struct {
	ID      string
	Session *progress.Session
	History *history.Store
	Bridge  *bridge.Bridge
}

// Config controls what gets wired onto every created session.
type Config struct {
	// Session is the template config applied to each new session.
	Session progress.Config
	// HistoryWindow bounds each session's snapshot history.
	HistoryWindow int
	// Clock stamps history records; nil leaves them unstamped.
	Clock progress.Clock
	// Recorder, when set, attaches a metrics observer per session.
	Recorder *metrics.Recorder
	// Bus, when set, lets each session's bridge subscribe to execution
	// events on the session's own id as channel.
	Bus execution.Bus
	// IDs mints session ids; nil means time-ordered UUIDs.
	IDs id.Generator
	// Logger is shared by sessions and bridges.
	Logger *zap.Logger
}

// Registry owns the session table. All methods are safe for concurrent use.
type Registry struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

// New constructs an empty Registry.
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.New()
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*Entry),
	}
}

// Create builds a session under a fresh uuid, attaches history, metrics, and
// bridge, and returns the entry. When a bus is configured the bridge is
// enabled on the session id, so execution events correlated by that id apply
// immediately.
func (r *Registry) Create() (*Entry, error) {
	id, err := r.cfg.IDs.NewID()
	if err != nil {
		return nil, fmt.Errorf("mint session id: %w", err)
	}

	sessCfg := r.cfg.Session
	if sessCfg.Logger == nil {
		sessCfg.Logger = r.logger
	}
	session := progress.New(sessCfg)

	entry := &Entry{
		ID:      id,
		Session: session,
		History: history.NewStore(r.cfg.HistoryWindow, r.cfg.Clock),
	}
	session.Subscribe(entry.History)
	if r.cfg.Recorder != nil {
		session.Subscribe(r.cfg.Recorder.Observer(id))
	}
	if r.cfg.Bus != nil {
		entry.Bridge = bridge.New(r.cfg.Bus, session, r.logger)
		if err := entry.Bridge.Enable(id); err != nil {
			if derr := session.Dispose(); derr != nil {
				r.logger.Warn("dispose after bridge failure", zap.Error(derr))
			}
			return nil, err
		}
	}

	r.mu.Lock()
	r.entries[id] = entry
	r.mu.Unlock()
	return entry, nil
}

// Get looks an entry up by id.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

// List returns all entries sorted by id for stable output.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove disposes a session and drops it from the table, forgetting its
// metric series. Removing an unknown id is an error; removing a session
// whose disposal reports a late hub shutdown still removes it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if entry.Bridge != nil {
		entry.Bridge.Close()
	}
	if err := entry.Session.Dispose(); err != nil {
		r.logger.Warn("session dispose", zap.String("session", id), zap.Error(err))
	}
	if r.cfg.Recorder != nil {
		r.cfg.Recorder.Forget(id)
	}
	return nil
}

// Close removes every session. Used on shutdown.
func (r *Registry) Close() {
	for _, entry := range r.List() {
		if err := r.Remove(entry.ID); err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Warn("registry close", zap.String("session", entry.ID), zap.Error(err))
		}
	}
}
