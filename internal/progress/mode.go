package progress

// Mode selects the reporting style of a session. Exactly one mode is active
// at a time; switching modes always resets session state.
type Mode string

// Supported reporting modes.
const (
	ModeNone          Mode = "NONE"
	ModeIndeterminate Mode = "INDETERMINATE"
	ModeNormal        Mode = "NORMAL"
	ModeStepped       Mode = "STEPPED"
)

// Status describes the lifecycle of a single step.
type Status string

// Supported step statuses. Completed, Failed, and Skipped are terminal:
// the completion sweep never touches a step that has reached one of them.
const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusSkipped    Status = "SKIPPED"
)

// Terminal reports whether st is a terminal status.
func (st Status) Terminal() bool {
	switch st {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// StepConfig declares one step of a stepped session. The set of configs is
// immutable once StartStepped returns.
type StepConfig struct {
	// ID uniquely identifies the step within its session.
	ID string
	// Name is the human-readable label shown by renderers.
	Name string
	// Tooltip carries optional hover text for renderers that support it.
	Tooltip string
}

// StepState is the live progress of one step.
type StepState struct {
	ID       string
	Progress float64
	Status   Status
}
