package progress

import "errors"

// Sentinel errors returned by session and hub operations. Callers are
// expected to test with errors.Is; operations never panic on misuse.
var (
	// ErrDisposed is returned by any operation attempted after Dispose.
	ErrDisposed = errors.New("session disposed")
	// ErrNotInitialized indicates a collaborator has not been bound yet.
	ErrNotInitialized = errors.New("not initialized")
	// ErrWrongMode indicates the operation is invalid for the current mode.
	ErrWrongMode = errors.New("operation invalid for current mode")
	// ErrInvalidArgument indicates a rejected input such as an empty step
	// list or a blank identifier.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStepNotFound is returned by strict step lookups for unknown ids.
	ErrStepNotFound = errors.New("step not found")
	// ErrCanceled indicates a wait was cut short by timeout or teardown.
	ErrCanceled = errors.New("operation canceled")
)
