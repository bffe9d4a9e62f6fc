package progress

import "sort"

// Snapshot is an immutable copy of session state handed to observers. It
// never aliases the session's internal maps, so observers may retain it
// indefinitely.
type Snapshot struct {
	// Visible reports whether a renderer should show anything at all.
	Visible bool
	// Indeterminate is true in indeterminate mode, where Progress carries
	// no meaning and renderers show a spinner instead of a percentage.
	Indeterminate bool
	// Message is the current status line.
	Message string
	// Progress is the overall percentage in [0,100].
	Progress float64
	// Steps holds the declared step configs; nil outside stepped mode.
	Steps []StepConfig
	// StepUpdates holds the live step states in declared order, followed
	// by any upserted undeclared steps sorted by id.
	StepUpdates []StepState

	// seq orders snapshots taken under the session lock. Mutators race only
	// between releasing that lock and enqueueing, so the hub uses seq to
	// drop a snapshot that arrives behind a newer one (last-value-wins).
	// Zero means unordered; hand-built snapshots skip the staleness check.
	seq uint64
}

// Equal reports structural equality with other. The hub uses it to suppress
// redundant deliveries; StepUpdates ordering is deterministic, so slice
// comparison is element-wise.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Visible != other.Visible ||
		s.Indeterminate != other.Indeterminate ||
		s.Message != other.Message ||
		s.Progress != other.Progress {
		return false
	}
	if len(s.Steps) != len(other.Steps) || len(s.StepUpdates) != len(other.StepUpdates) {
		return false
	}
	for i := range s.Steps {
		if s.Steps[i] != other.Steps[i] {
			return false
		}
	}
	for i := range s.StepUpdates {
		if s.StepUpdates[i] != other.StepUpdates[i] {
			return false
		}
	}
	return true
}

// orderedStepStates flattens states into declared order, appending any
// undeclared (upserted) steps sorted by id so snapshots stay deterministic.
func orderedStepStates(steps []StepConfig, states map[string]StepState) []StepState {
	if len(states) == 0 {
		return nil
	}
	out := make([]StepState, 0, len(states))
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		if st, ok := states[step.ID]; ok {
			out = append(out, st)
			seen[step.ID] = true
		}
	}
	extras := make([]string, 0)
	for id := range states {
		if !seen[id] {
			extras = append(extras, id)
		}
	}
	sort.Strings(extras)
	for _, id := range extras {
		out = append(out, states[id])
	}
	return out
}
