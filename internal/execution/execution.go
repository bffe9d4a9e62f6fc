// Package execution defines the interface boundary to the task-execution
// pipeline: the lifecycle events emitted by running tasks and the bus the
// progress bridge subscribes to, keyed by a caller-supplied channel id.
// This abstraction keeps the engine independent of how tasks actually run.
package execution

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the lifecycle milestone carried by an Event.
type Kind string

// Supported event kinds.
const (
	KindTaskStarted   Kind = "TASK_STARTED"
	KindTaskProgress  Kind = "TASK_PROGRESS"
	KindTaskCompleted Kind = "TASK_COMPLETED"
	KindTaskFailed    Kind = "TASK_FAILED"
)

// Kinds lists every event kind, in lifecycle order.
func Kinds() []Kind {
	return []Kind{KindTaskStarted, KindTaskProgress, KindTaskCompleted, KindTaskFailed}
}

// Event is one task lifecycle notification.
type Event struct {
	// Channel scopes the event to one subscription set (correlation id).
	Channel string
	// Kind denotes which lifecycle milestone occurred.
	Kind Kind
	// TaskName identifies the task; in stepped sessions it doubles as the
	// step id.
	TaskName string
	// StepPercent, when present, carries the task's own completion in
	// [0,100] for stepped sessions.
	StepPercent *float64
	// OverallPercent, when present, carries an overall completion figure
	// for normal-mode sessions.
	OverallPercent *float64
	// Message optionally replaces the session status line.
	Message string
	// TS is the emitter's timestamp; buses stamp it when zero.
	TS time.Time
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Channel == "" {
		return errors.New("channel is required")
	}
	if e.TaskName == "" {
		return errors.New("task name is required")
	}
	switch e.Kind {
	case KindTaskStarted, KindTaskCompleted, KindTaskFailed:
	case KindTaskProgress:
		if e.StepPercent == nil && e.OverallPercent == nil {
			return errors.New("progress event carries no percentage")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}

// Handler consumes events for one (channel, kind) subscription. Handlers may
// be invoked from the publisher's goroutine and must not block for long.
type Handler func(Event)

// Subscription is one active (channel, kind) registration.
type Subscription interface {
	// Unsubscribe deregisters the handler. Safe to call more than once.
	Unsubscribe()
}

// Bus delivers task lifecycle events to subscribed handlers in publish
// order per channel.
type Bus interface {
	Subscribe(channel string, kind Kind, h Handler) (Subscription, error)
	Publish(evt Event) error
}
