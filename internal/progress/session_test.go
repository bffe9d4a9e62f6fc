package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s := New(cfg)
	t.Cleanup(func() {
		require.NoError(t, s.Dispose())
	})
	return s
}

// TestStartSteppedRejectsEmptySteps pins the ErrInvalidArgument contract.
func TestStartSteppedRejectsEmptySteps(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	require.ErrorIs(t, s.StartStepped(nil), ErrInvalidArgument)
	require.ErrorIs(t, s.StartStepped([]StepConfig{}), ErrInvalidArgument)
	require.Equal(t, ModeNone, s.Current().mode())
}

// TestStartMessages verifies the initial message per mode.
func TestStartMessages(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})

	require.NoError(t, s.StartIndeterminate("Loading..."))
	snap := s.Current()
	require.True(t, snap.Visible)
	require.True(t, snap.Indeterminate)
	require.Equal(t, "Loading...", snap.Message)

	require.NoError(t, s.StartNormal())
	snap = s.Current()
	require.False(t, snap.Indeterminate)
	require.Equal(t, "Starting...", snap.Message)
	require.Equal(t, 0.0, snap.Progress)

	require.NoError(t, s.StartStepped([]StepConfig{{ID: "a"}, {ID: "b"}}))
	snap = s.Current()
	require.Equal(t, "Step 1 of 2", snap.Message)
	require.Len(t, snap.StepUpdates, 2)
	for _, st := range snap.StepUpdates {
		require.Equal(t, StatusNotStarted, st.Status)
		require.Equal(t, 0.0, st.Progress)
	}
}

// TestUpdateProgressClamps checks out-of-range inputs land on the bounds.
func TestUpdateProgressClamps(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	require.NoError(t, s.StartNormal())

	require.NoError(t, s.UpdateProgress(-5, ""))
	require.Equal(t, 0.0, s.Current().Progress)

	require.NoError(t, s.UpdateProgress(150, ""))
	require.Equal(t, 100.0, s.Current().Progress)

	require.NoError(t, s.UpdateProgress(33.5, "halfway-ish"))
	snap := s.Current()
	require.Equal(t, 33.5, snap.Progress)
	require.Equal(t, "halfway-ish", snap.Message)

	// Empty message leaves the prior one in place.
	require.NoError(t, s.UpdateProgress(40, ""))
	require.Equal(t, "halfway-ish", s.Current().Message)
}

// TestModeExclusivity asserts updates outside their mode fail with
// ErrWrongMode and leave state untouched.
func TestModeExclusivity(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})

	require.ErrorIs(t, s.UpdateProgress(10, ""), ErrWrongMode)
	require.ErrorIs(t, s.UpdateStep("a", 10, StatusInProgress), ErrWrongMode)

	require.NoError(t, s.StartIndeterminate("spin"))
	require.ErrorIs(t, s.UpdateProgress(10, ""), ErrWrongMode)
	require.ErrorIs(t, s.UpdateTaskProgress("t", 10, ""), ErrWrongMode)
	require.ErrorIs(t, s.UpdateStep("a", 10, StatusInProgress), ErrWrongMode)
	require.Equal(t, "spin", s.Current().Message)

	require.NoError(t, s.StartStepped([]StepConfig{{ID: "a"}}))
	require.ErrorIs(t, s.UpdateProgress(10, ""), ErrWrongMode)

	require.NoError(t, s.StartNormal())
	require.ErrorIs(t, s.UpdateStep("a", 10, StatusInProgress), ErrWrongMode)
	require.ErrorIs(t, s.UpsertStep("a", 10, StatusInProgress), ErrWrongMode)
}

// TestSteppedAggregation checks overall progress is the mean over all steps.
func TestSteppedAggregation(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	require.NoError(t, s.StartStepped([]StepConfig{{ID: "a"}, {ID: "b"}, {ID: "c"}}))

	require.NoError(t, s.UpdateStep("a", 30, StatusInProgress))
	require.NoError(t, s.UpdateStep("b", 60, StatusInProgress))

	snap := s.Current()
	require.InDelta(t, 30.0, snap.Progress, 1e-9)
	require.Equal(t, "Step 2 of 3", snap.Message)

	// Step progress is clamped before aggregation.
	require.NoError(t, s.UpdateStep("c", 250, StatusInProgress))
	require.InDelta(t, (30.0+60+100)/3, s.Current().Progress, 1e-9)
}

// TestTaskAggregation checks the task-keyed form averages contributions.
func TestTaskAggregation(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	require.NoError(t, s.StartNormal())

	require.ErrorIs(t, s.UpdateTaskProgress("", 10, ""), ErrInvalidArgument)

	require.NoError(t, s.UpdateTaskProgress("pull", 40, "pulling"))
	require.InDelta(t, 40.0, s.Current().Progress, 1e-9)

	require.NoError(t, s.UpdateTaskProgress("build", 20, ""))
	require.InDelta(t, 30.0, s.Current().Progress, 1e-9)

	require.NoError(t, s.UpdateTaskProgress("pull", 100, ""))
	require.InDelta(t, 60.0, s.Current().Progress, 1e-9)
	require.Equal(t, "pulling", s.Current().Message)
}

// TestStrictLookupVsUpsert codifies the split contract: direct callers get
// ErrStepNotFound, bridge-style upserts tolerate undeclared ids.
func TestStrictLookupVsUpsert(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	require.NoError(t, s.StartStepped([]StepConfig{{ID: "a"}}))

	require.ErrorIs(t, s.UpdateStep("ghost", 10, StatusInProgress), ErrStepNotFound)
	require.Len(t, s.Current().StepUpdates, 1)

	require.NoError(t, s.UpsertStep("ghost", 50, StatusInProgress))
	snap := s.Current()
	require.Len(t, snap.StepUpdates, 2)
	require.InDelta(t, 25.0, snap.Progress, 1e-9)
	// An undeclared step never drives the positional message.
	require.Equal(t, "Step 1 of 1", snap.Message)

	require.ErrorIs(t, s.UpdateStep("", 10, StatusInProgress), ErrInvalidArgument)
}

// TestCompletionSweep promotes only non-terminal steps.
func TestCompletionSweep(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{HoldDelay: time.Minute})
	require.NoError(t, s.StartStepped([]StepConfig{{ID: "a"}, {ID: "b"}, {ID: "c"}}))
	require.NoError(t, s.UpdateStep("a", 80, StatusInProgress))
	require.NoError(t, s.UpdateStep("b", 100, StatusFailed))
	require.NoError(t, s.UpdateStep("c", 70, StatusSkipped))

	require.NoError(t, s.Complete())

	snap := s.Current()
	byID := make(map[string]StepState, len(snap.StepUpdates))
	for _, st := range snap.StepUpdates {
		byID[st.ID] = st
	}
	require.Equal(t, StepState{ID: "a", Progress: 100, Status: StatusCompleted}, byID["a"])
	require.Equal(t, StepState{ID: "b", Progress: 100, Status: StatusFailed}, byID["b"])
	require.Equal(t, StepState{ID: "c", Progress: 70, Status: StatusSkipped}, byID["c"])
	require.Equal(t, "Completed", snap.Message)
	require.True(t, snap.Visible)
}

// TestCompleteHoldsThenHides drives the display hold via the injected timer
// source and checks for the hidden snapshot.
func TestCompleteHoldsThenHides(t *testing.T) {
	t.Parallel()

	after := make(chan time.Time)
	s := newTestSession(t, Config{
		After: func(time.Duration) <-chan time.Time { return after },
	})
	rec := newSnapRecorder()
	s.Subscribe(rec)

	require.NoError(t, s.StartNormal())
	require.NoError(t, s.UpdateProgress(50, ""))
	require.NoError(t, s.Complete())

	snap := s.Current()
	require.True(t, snap.Visible)
	require.Equal(t, 100.0, snap.Progress)
	require.Equal(t, "Completed", snap.Message)

	// Concurrent second Complete during the hold is a no-op.
	require.NoError(t, s.Complete())

	after <- time.Now()
	require.Eventually(t, func() bool {
		last, ok := rec.Last()
		return ok && !last.Visible
	}, time.Second, 5*time.Millisecond)
	require.False(t, s.Current().Visible)
}

// TestResetCancelsPendingHold starts a new operation during the hold and
// verifies the stale hide never lands.
func TestResetCancelsPendingHold(t *testing.T) {
	t.Parallel()

	after := make(chan time.Time, 1)
	s := newTestSession(t, Config{
		After: func(time.Duration) <-chan time.Time { return after },
	})
	require.NoError(t, s.StartNormal())
	require.NoError(t, s.Complete())

	require.NoError(t, s.StartIndeterminate("again"))
	after <- time.Now()

	// The canceled hold must not hide the restarted session.
	time.Sleep(50 * time.Millisecond)
	snap := s.Current()
	require.True(t, snap.Visible)
	require.Equal(t, "again", snap.Message)
}

// TestResetIsolation verifies StartNormal after a stepped session clears all
// step state.
func TestResetIsolation(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	require.NoError(t, s.StartStepped([]StepConfig{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, s.UpdateStep("a", 40, StatusInProgress))

	require.NoError(t, s.StartNormal())
	snap := s.Current()
	require.Empty(t, snap.Steps)
	require.Empty(t, snap.StepUpdates)
	require.Equal(t, 0.0, snap.Progress)
	require.ErrorIs(t, s.UpdateStep("a", 50, StatusInProgress), ErrWrongMode)
}

// TestDisposeIdempotent checks double-dispose is a no-op and later calls
// fail fast with ErrDisposed.
func TestDisposeIdempotent(t *testing.T) {
	t.Parallel()

	s := New(Config{})
	require.NoError(t, s.StartNormal())
	require.NoError(t, s.Dispose())
	require.NoError(t, s.Dispose())
	require.True(t, s.Disposed())

	require.ErrorIs(t, s.StartIndeterminate("x"), ErrDisposed)
	require.ErrorIs(t, s.StartNormal(), ErrDisposed)
	require.ErrorIs(t, s.StartStepped([]StepConfig{{ID: "a"}}), ErrDisposed)
	require.ErrorIs(t, s.UpdateProgress(10, ""), ErrDisposed)
	require.ErrorIs(t, s.UpdateTaskProgress("t", 10, ""), ErrDisposed)
	require.ErrorIs(t, s.UpdateStep("a", 10, StatusInProgress), ErrDisposed)
	require.ErrorIs(t, s.UpsertStep("a", 10, StatusInProgress), ErrDisposed)
	require.ErrorIs(t, s.Complete(), ErrDisposed)
}

// TestConcurrentMutators hammers one session from many goroutines and
// checks the aggregate invariants still hold afterwards.
func TestConcurrentMutators(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Config{})
	steps := []StepConfig{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	require.NoError(t, s.StartStepped(steps))

	var wg sync.WaitGroup
	for _, step := range steps {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for p := 0; p <= 100; p += 5 {
				require.NoError(t, s.UpdateStep(id, float64(p), StatusInProgress))
			}
		}(step.ID)
	}
	wg.Wait()

	snap := s.Current()
	require.Equal(t, 100.0, snap.Progress)
	require.Len(t, snap.StepUpdates, len(steps))
	for _, st := range snap.StepUpdates {
		require.Equal(t, 100.0, st.Progress)
	}
}

// mode is a test-only accessor deriving the reporting mode from a snapshot.
func (s Snapshot) mode() Mode {
	switch {
	case s.Indeterminate:
		return ModeIndeterminate
	case len(s.Steps) > 0:
		return ModeStepped
	case s.Visible:
		return ModeNormal
	default:
		return ModeNone
	}
}

type snapRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func newSnapRecorder() *snapRecorder {
	return &snapRecorder{}
}

func (r *snapRecorder) Notify(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *snapRecorder) All() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func (r *snapRecorder) Last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}
