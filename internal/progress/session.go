package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts wall-clock reads for components that timestamp snapshots.
type Clock interface {
	Now() time.Time
}

// Config controls Session behavior.
//   - HoldDelay: how long a completed session stays visible before hiding
//     (default 600ms). The hold is cancellable and never blocks mutators.
//   - Hub: tuning for the embedded notification hub.
//   - After: timer source for the completion hold (defaults to time.After);
//     injectable so tests can drive the hold deterministically.
//   - Logger: optional structured logger used for warnings.
type Config struct {
	HoldDelay time.Duration
	Hub       HubConfig
	After     func(time.Duration) <-chan time.Time
	Logger    *zap.Logger
}

const (
	defaultHoldDelay   = 600 * time.Millisecond
	disposeWaitTimeout = 2 * time.Second

	startingMessage  = "Starting..."
	completedMessage = "Completed"
)

// Session is the aggregate root of the engine: one instance tracks one
// logical long-running operation. All exported methods are safe for
// concurrent use; every mutation is serialized behind one mutex, and the
// lock is never held across an observer callback or the completion hold.
type Session struct {
	cfg    Config
	logger *zap.Logger
	hub    *Hub

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	disposed     bool
	mode         Mode
	message      string
	progress     float64
	visible      bool
	steps        []StepConfig
	stepStates   map[string]StepState
	taskProgress map[string]float64
	holdCancel   context.CancelFunc
	pubSeq       uint64

	disposeOnce sync.Once
	disposeErr  error
}

// New constructs an idle Session in ModeNone and starts its hub.
func New(cfg Config) *Session {
	if cfg.HoldDelay <= 0 {
		cfg.HoldDelay = defaultHoldDelay
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Hub.Logger == nil {
		cfg.Hub.Logger = logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		logger: logger,
		hub:    NewHub(cfg.Hub),
		ctx:    ctx,
		cancel: cancel,
		mode:   ModeNone,
	}
}

// Subscribe registers an observer for snapshot delivery.
func (s *Session) Subscribe(obs Observer) Subscription {
	return s.hub.Subscribe(obs)
}

// StartIndeterminate resets the session and shows an indeterminate spinner
// with the given message.
func (s *Session) StartIndeterminate(message string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.resetLocked(ModeIndeterminate)
	s.message = message
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	return nil
}

// StartNormal resets the session into normal (single percentage) mode.
func (s *Session) StartNormal() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.resetLocked(ModeNormal)
	s.message = startingMessage
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	return nil
}

// StartStepped resets the session into stepped mode with one StepState per
// config, each at {0, NotStarted}. An empty step list is rejected.
func (s *Session) StartStepped(steps []StepConfig) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: step list is empty", ErrInvalidArgument)
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.resetLocked(ModeStepped)
	s.steps = append([]StepConfig(nil), steps...)
	for _, step := range steps {
		s.stepStates[step.ID] = StepState{ID: step.ID, Progress: 0, Status: StatusNotStarted}
	}
	s.message = fmt.Sprintf("Step 1 of %d", len(steps))
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	return nil
}

// UpdateProgress sets the overall percentage directly. Valid only in normal
// mode; progress is clamped to [0,100] and the message updated when
// non-empty.
func (s *Session) UpdateProgress(progress float64, message string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.mode != ModeNormal {
		s.mu.Unlock()
		return fmt.Errorf("%w: UpdateProgress requires normal mode, session is %s", ErrWrongMode, s.mode)
	}
	s.progress = Clamp(progress, 0, 100)
	if message != "" {
		s.message = message
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	return nil
}

// UpdateTaskProgress records one task's contribution under taskID and
// recomputes the overall percentage as the mean of all task contributions.
// Valid only in normal mode.
func (s *Session) UpdateTaskProgress(taskID string, progress float64, message string) error {
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalidArgument)
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.mode != ModeNormal {
		s.mu.Unlock()
		return fmt.Errorf("%w: UpdateTaskProgress requires normal mode, session is %s", ErrWrongMode, s.mode)
	}
	s.taskProgress[taskID] = Clamp(progress, 0, 100)
	values := make([]float64, 0, len(s.taskProgress))
	for _, v := range s.taskProgress {
		values = append(values, v)
	}
	s.progress = MeanOrZero(values)
	if message != "" {
		s.message = message
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	return nil
}

// UpdateStep records progress for a declared step. Valid only in stepped
// mode; unknown step ids are rejected with ErrStepNotFound. Bridge-originated
// events use UpsertStep instead, which tolerates undeclared ids.
func (s *Session) UpdateStep(stepID string, progress float64, status Status) error {
	return s.applyStep(stepID, progress, status, false)
}

// UpsertStep records progress for a step, creating state for ids that were
// never declared. External pipelines may reference tasks not pre-declared as
// steps; those still contribute to the overall mean but never change the
// "Step i of N" message.
func (s *Session) UpsertStep(stepID string, progress float64, status Status) error {
	return s.applyStep(stepID, progress, status, true)
}

func (s *Session) applyStep(stepID string, progress float64, status Status, upsert bool) error {
	if stepID == "" {
		return fmt.Errorf("%w: step id is required", ErrInvalidArgument)
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.mode != ModeStepped {
		s.mu.Unlock()
		return fmt.Errorf("%w: step updates require stepped mode, session is %s", ErrWrongMode, s.mode)
	}
	if _, ok := s.stepStates[stepID]; !ok && !upsert {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStepNotFound, stepID)
	}
	s.stepStates[stepID] = StepState{
		ID:       stepID,
		Progress: Clamp(progress, 0, 100),
		Status:   status,
	}
	s.recomputeSteppedLocked()
	s.message = StepIndexMessage(s.steps, stepID, s.message)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	return nil
}

// Complete finishes the current operation. In stepped mode every step that
// has not reached a terminal status is promoted to {100, Completed};
// terminal steps are left untouched. In other modes the percentage jumps to
// 100 with a "Completed" message. The session stays visible for the
// configured hold delay, then hides; a concurrent second Complete while the
// hold is pending is a no-op.
func (s *Session) Complete() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.holdCancel != nil {
		s.mu.Unlock()
		return nil
	}
	if s.mode == ModeStepped {
		for id, st := range s.stepStates {
			if !st.Status.Terminal() {
				st.Progress = 100
				st.Status = StatusCompleted
				s.stepStates[id] = st
			}
		}
		s.recomputeSteppedLocked()
	} else {
		s.progress = 100
	}
	s.message = completedMessage
	holdCtx, cancel := context.WithCancel(s.ctx)
	s.holdCancel = cancel
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
	go s.holdThenHide(holdCtx)
	return nil
}

// holdThenHide hides the session after the display hold elapses. Reset and
// Dispose cancel the hold; cancellation during teardown is expected and is
// not surfaced anywhere.
func (s *Session) holdThenHide(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-s.cfg.After(s.cfg.HoldDelay):
	}
	s.mu.Lock()
	// The timer can win the select against a concurrent cancellation; the
	// context is the source of truth for whether this hold is still live.
	if ctx.Err() != nil || s.disposed || s.holdCancel == nil {
		s.mu.Unlock()
		return
	}
	s.holdCancel()
	s.holdCancel = nil
	s.visible = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.Publish(snap)
}

// Mode returns the active reporting mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Current returns a copy of the present session state. It is a read-side
// convenience for pollers such as the HTTP API; observers should subscribe
// instead.
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Disposed reports whether Dispose has begun.
func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose tears the session down: it cancels any pending hold, rejects all
// further mutations with ErrDisposed, and drains the hub so queued snapshots
// reach observers before the publisher goroutine exits. Dispose is
// idempotent; repeat calls return the first call's result.
func (s *Session) Dispose() error {
	s.disposeOnce.Do(func() {
		s.mu.Lock()
		s.disposed = true
		if s.holdCancel != nil {
			s.holdCancel()
			s.holdCancel = nil
		}
		s.mu.Unlock()
		s.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), disposeWaitTimeout)
		defer cancel()
		if err := s.hub.Close(ctx); err != nil {
			s.logger.Warn("hub close during dispose", zap.Error(err))
			s.disposeErr = err
		}
	})
	return s.disposeErr
}

// resetLocked clears all per-mode state and cancels a pending hold. Every
// StartX goes through here, so switching modes never leaks prior state.
func (s *Session) resetLocked(mode Mode) {
	if s.holdCancel != nil {
		s.holdCancel()
		s.holdCancel = nil
	}
	s.mode = mode
	s.message = ""
	s.progress = 0
	s.visible = true
	s.steps = nil
	s.stepStates = make(map[string]StepState)
	s.taskProgress = make(map[string]float64)
}

func (s *Session) recomputeSteppedLocked() {
	values := make([]float64, 0, len(s.stepStates))
	for _, st := range s.stepStates {
		values = append(values, st.Progress)
	}
	s.progress = MeanOrZero(values)
}

func (s *Session) snapshotLocked() Snapshot {
	s.pubSeq++
	return Snapshot{
		seq:           s.pubSeq,
		Visible:       s.visible,
		Indeterminate: s.mode == ModeIndeterminate,
		Message:       s.message,
		Progress:      s.progress,
		Steps:         append([]StepConfig(nil), s.steps...),
		StepUpdates:   orderedStepStates(s.steps, s.stepStates),
	}
}
