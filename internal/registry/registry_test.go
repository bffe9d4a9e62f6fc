package registry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jmcadams/pulse/internal/execution"
	"github.com/jmcadams/pulse/internal/execution/memory"
	"github.com/jmcadams/pulse/internal/metrics"
	"github.com/jmcadams/pulse/internal/progress"
)

func pct(v float64) *float64 {
	return &v
}

// TestRegistryLifecycle covers create, lookup, listing, and removal.
func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	r := New(Config{})
	t.Cleanup(r.Close)

	first, err := r.Create()
	require.NoError(t, err)
	second, err := r.Create()
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	got, err := r.Get(first.ID)
	require.NoError(t, err)
	require.Same(t, first, got)

	require.Len(t, r.List(), 2)

	require.NoError(t, r.Remove(first.ID))
	require.ErrorIs(t, r.Remove(first.ID), ErrNotFound)
	_, err = r.Get(first.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, first.Session.Disposed())
}

// TestRegistryWiresHistory checks snapshots flow into the per-session window.
func TestRegistryWiresHistory(t *testing.T) {
	t.Parallel()

	r := New(Config{HistoryWindow: 8})
	t.Cleanup(r.Close)

	entry, err := r.Create()
	require.NoError(t, err)
	require.NoError(t, entry.Session.StartNormal())
	require.NoError(t, entry.Session.UpdateProgress(42, "busy"))

	require.Eventually(t, func() bool {
		rec, ok := entry.History.Latest()
		return ok && rec.Snapshot.Progress == 42
	}, time.Second, 5*time.Millisecond)
}

// TestRegistryWiresBridge publishes execution events on the session id and
// expects them to land without any manual Enable.
func TestRegistryWiresBridge(t *testing.T) {
	t.Parallel()

	bus := memory.New(nil, nil)
	t.Cleanup(bus.Close)
	r := New(Config{Bus: bus})
	t.Cleanup(r.Close)

	entry, err := r.Create()
	require.NoError(t, err)
	require.NotNil(t, entry.Bridge)
	require.Equal(t, entry.ID, entry.Bridge.Channel())

	require.NoError(t, entry.Session.StartNormal())
	require.NoError(t, bus.Publish(execution.Event{
		Channel:        entry.ID,
		Kind:           execution.KindTaskProgress,
		TaskName:       "ingest",
		OverallPercent: pct(73),
	}))
	require.Equal(t, 73.0, entry.Session.Current().Progress)
}

// TestRegistryForgetsMetrics verifies metric series disappear with their
// session.
func TestRegistryForgetsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)
	r := New(Config{Recorder: rec, Session: progress.Config{HoldDelay: time.Minute}})
	t.Cleanup(r.Close)

	entry, err := r.Create()
	require.NoError(t, err)
	require.NoError(t, entry.Session.StartNormal())
	require.NoError(t, entry.Session.UpdateProgress(10, ""))

	require.Eventually(t, func() bool {
		families, gerr := reg.Gather()
		require.NoError(t, gerr)
		return len(families) > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Remove(entry.ID))
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}
