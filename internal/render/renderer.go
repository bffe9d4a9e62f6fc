// Package render defines the renderer boundary: the visual component that
// displays progress lives outside the engine, and the engine only ever talks
// to it through the Renderer interface, fire-and-forget.
package render

import (
	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/progress"
)

// Renderer is implemented by whatever surface displays progress. Calls are
// best effort: implementations should not block, and any failure is logged
// by the adapter rather than fed back into the engine.
type Renderer interface {
	ShowIndeterminate(message string)
	ShowProgress(percent float64, message string)
	ShowSteps(steps []progress.StepConfig)
	UpdateStep(stepID string, percent float64, status progress.Status)
	Reset()
}

// LogRenderer writes render calls as structured logs. It is the development
// renderer and the one the demo command uses.
type LogRenderer struct {
	logger *zap.Logger
}

// NewLogRenderer wires a zap logger to the Renderer interface.
func NewLogRenderer(logger *zap.Logger) *LogRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRenderer{logger: logger}
}

// ShowIndeterminate implements Renderer.
func (r *LogRenderer) ShowIndeterminate(message string) {
	r.logger.Info("render indeterminate", zap.String("message", message))
}

// ShowProgress implements Renderer.
func (r *LogRenderer) ShowProgress(percent float64, message string) {
	r.logger.Info("render progress",
		zap.Float64("percent", percent),
		zap.String("message", message))
}

// ShowSteps implements Renderer.
func (r *LogRenderer) ShowSteps(steps []progress.StepConfig) {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.ID
	}
	r.logger.Info("render steps", zap.Strings("steps", names))
}

// UpdateStep implements Renderer.
func (r *LogRenderer) UpdateStep(stepID string, percent float64, status progress.Status) {
	r.logger.Info("render step update",
		zap.String("step", stepID),
		zap.Float64("percent", percent),
		zap.String("status", string(status)))
}

// Reset implements Renderer.
func (r *LogRenderer) Reset() {
	r.logger.Info("render reset")
}
