package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmcadams/pulse/internal/progress"
)

type tickingClock struct {
	at time.Time
}

func (c *tickingClock) Now() time.Time {
	c.at = c.at.Add(time.Second)
	return c.at
}

// TestStoreWindowEviction fills past capacity and checks only the newest
// records survive.
func TestStoreWindowEviction(t *testing.T) {
	t.Parallel()

	s := NewStore(3, &tickingClock{})
	for i := 1; i <= 5; i++ {
		s.Notify(progress.Snapshot{Visible: true, Progress: float64(i)})
	}

	require.Equal(t, 3, s.Len())
	recent := s.Recent(0)
	require.Len(t, recent, 3)
	require.Equal(t, 5.0, recent[0].Snapshot.Progress)
	require.Equal(t, 4.0, recent[1].Snapshot.Progress)
	require.Equal(t, 3.0, recent[2].Snapshot.Progress)
}

// TestStoreRecentLimit caps reads without touching the window.
func TestStoreRecentLimit(t *testing.T) {
	t.Parallel()

	s := NewStore(10, nil)
	for i := 1; i <= 4; i++ {
		s.Notify(progress.Snapshot{Progress: float64(i)})
	}

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, 4.0, recent[0].Snapshot.Progress)
	require.Equal(t, 3.0, recent[1].Snapshot.Progress)
	require.Equal(t, 4, s.Len())

	require.Len(t, s.Recent(100), 4)
}

// TestStoreLatest covers the empty case and timestamping.
func TestStoreLatest(t *testing.T) {
	t.Parallel()

	s := NewStore(0, &tickingClock{})
	_, ok := s.Latest()
	require.False(t, ok)

	s.Notify(progress.Snapshot{Progress: 7})
	s.Notify(progress.Snapshot{Progress: 9})
	rec, ok := s.Latest()
	require.True(t, ok)
	require.Equal(t, 9.0, rec.Snapshot.Progress)
	require.False(t, rec.At.IsZero())
}
