package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSnapshotEqual checks structural equality across each field that should
// participate in de-duplication.
func TestSnapshotEqual(t *testing.T) {
	t.Parallel()

	base := Snapshot{
		Visible:     true,
		Message:     "Step 1 of 2",
		Progress:    25,
		Steps:       []StepConfig{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		StepUpdates: []StepState{{ID: "a", Progress: 50, Status: StatusInProgress}},
	}

	same := base
	same.Steps = append([]StepConfig(nil), base.Steps...)
	same.StepUpdates = append([]StepState(nil), base.StepUpdates...)
	require.True(t, base.Equal(same))

	// seq is publish-ordering metadata, not content.
	same.seq = 99
	require.True(t, base.Equal(same))

	for name, mutate := range map[string]func(*Snapshot){
		"visible":       func(s *Snapshot) { s.Visible = false },
		"indeterminate": func(s *Snapshot) { s.Indeterminate = true },
		"message":       func(s *Snapshot) { s.Message = "other" },
		"progress":      func(s *Snapshot) { s.Progress = 26 },
		"steps":         func(s *Snapshot) { s.Steps = s.Steps[:1] },
		"step config":   func(s *Snapshot) { s.Steps[0].Name = "renamed" },
		"step state":    func(s *Snapshot) { s.StepUpdates[0].Progress = 51 },
	} {
		changed := base
		changed.Steps = append([]StepConfig(nil), base.Steps...)
		changed.StepUpdates = append([]StepState(nil), base.StepUpdates...)
		mutate(&changed)
		require.False(t, base.Equal(changed), "mutation %q should break equality", name)
	}
}

// TestOrderedStepStates asserts declared ordering first, then upserted
// extras sorted by id, so equal state always yields an equal snapshot.
func TestOrderedStepStates(t *testing.T) {
	t.Parallel()

	steps := []StepConfig{{ID: "b"}, {ID: "a"}}
	states := map[string]StepState{
		"a": {ID: "a", Progress: 10, Status: StatusInProgress},
		"b": {ID: "b", Progress: 20, Status: StatusInProgress},
		"z": {ID: "z", Progress: 30, Status: StatusCompleted},
		"c": {ID: "c", Progress: 40, Status: StatusFailed},
	}

	got := orderedStepStates(steps, states)
	ids := make([]string, len(got))
	for i, st := range got {
		ids[i] = st.ID
	}
	require.Equal(t, []string{"b", "a", "c", "z"}, ids)

	require.Nil(t, orderedStepStates(steps, nil))
	require.Nil(t, orderedStepStates(nil, map[string]StepState{}))
}
