package progress

import "fmt"

// MeanOrZero returns the arithmetic mean of values, or 0 for an empty input.
func MeanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Clamp constrains x to the inclusive range [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// StepIndexMessage formats the "Step i of N" message for the step at
// stepID's position in the declared ordering. If stepID is not among steps
// the fallback message is returned unchanged; unknown ids are expected when
// external events reference tasks that were never declared as steps.
func StepIndexMessage(steps []StepConfig, stepID, fallback string) string {
	for i, step := range steps {
		if step.ID == stepID {
			return fmt.Sprintf("Step %d of %d", i+1, len(steps))
		}
	}
	return fallback
}
