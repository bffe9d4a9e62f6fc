package render

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/progress"
)

// Adapter is a hub observer that drives a Renderer from snapshots. It diffs
// each snapshot against the previous one so the renderer only hears about
// what changed: a new step layout triggers ShowSteps, changed step states
// trigger UpdateStep, and hiding triggers Reset. Renderer panics are
// contained here; the mutation path never learns about them.
type Adapter struct {
	renderer Renderer
	logger   *zap.Logger

	mu   sync.Mutex
	prev *progress.Snapshot
}

// NewAdapter wires the renderer. A nil renderer yields an adapter whose
// Notify reports ErrNotInitialized once and otherwise drops snapshots.
func NewAdapter(renderer Renderer, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{renderer: renderer, logger: logger}
}

// Notify implements progress.Observer.
func (a *Adapter) Notify(snap progress.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.renderer == nil {
		a.logger.Warn("dropping snapshot", zap.Error(progress.ErrNotInitialized))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("renderer panicked", zap.Any("panic", r))
		}
	}()

	prev := a.prev
	a.prev = &snap

	if !snap.Visible {
		if prev == nil || prev.Visible {
			a.renderer.Reset()
		}
		return
	}

	switch {
	case snap.Indeterminate:
		a.renderer.ShowIndeterminate(snap.Message)
	case len(snap.Steps) > 0 || len(snap.StepUpdates) > 0:
		if prev == nil || !sameSteps(prev.Steps, snap.Steps) {
			a.renderer.ShowSteps(snap.Steps)
		}
		for _, st := range snap.StepUpdates {
			if prev == nil || !hasStepState(prev.StepUpdates, st) {
				a.renderer.UpdateStep(st.ID, st.Progress, st.Status)
			}
		}
	default:
		a.renderer.ShowProgress(snap.Progress, snap.Message)
	}
}

func sameSteps(a, b []progress.StepConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasStepState(states []progress.StepState, st progress.StepState) bool {
	for _, candidate := range states {
		if candidate == st {
			return true
		}
	}
	return false
}
