// Package history keeps a bounded in-memory window of recently published
// snapshots per session. It is the only persistence this engine has; nothing
// ever leaves the process.
package history

import (
	"sync"
	"time"

	"github.com/jmcadams/pulse/internal/progress"
)

const defaultWindow = 64

// Record is one timestamped snapshot.
type Record struct {
	At       time.Time
	Snapshot progress.Snapshot
}

// Store is a fixed-capacity rolling window fed as a hub observer. Once the
// window fills, the oldest record is evicted on every append.
type Store struct {
	clock  progress.Clock
	window int

	mu      sync.Mutex
	records []Record
}

// NewStore builds a Store keeping at most window records; window <= 0 falls
// back to the default of 64. clock may be nil, in which case records carry
// zero timestamps.
func NewStore(window int, clock progress.Clock) *Store {
	if window <= 0 {
		window = defaultWindow
	}
	return &Store{
		clock:  clock,
		window: window,
	}
}

// Notify implements progress.Observer.
func (s *Store) Notify(snap progress.Snapshot) {
	rec := Record{Snapshot: snap}
	if s.clock != nil {
		rec.At = s.clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.records) > s.window {
		s.records = append(s.records[:0], s.records[len(s.records)-s.window:]...)
	}
}

// Recent returns up to limit records, newest first. limit <= 0 returns the
// whole window. The result never aliases internal storage.
func (s *Store) Recent(limit int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.records[n-1-i]
	}
	return out
}

// Latest returns the most recent record, if any.
func (s *Store) Latest() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

// Len reports how many records the window currently holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
