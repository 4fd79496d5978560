package progress

import (
	"fmt"
	"math"

	"philosofium/backend/models"
)

// ComputeCoursePercent returns round(100*completed/total) clamped to
// [0,100]. A course without lessons is 0% complete.
func ComputeCoursePercent(totalLessons, completedLessons int) int {
	if totalLessons <= 0 || completedLessons <= 0 {
		return 0
	}
	pct := math.Round(100 * float64(completedLessons) / float64(totalLessons))
	return clamp(int(pct))
}

func IsCourseComplete(percent int) bool {
	return percent == 100
}

// Completion is the only value a store accepts for a course-level write, so
// the completed flag is always derived from the percentage it travels with.
type Completion struct {
	percent   int
	completed bool
}

func FromPercent(percent int) Completion {
	p := clamp(percent)
	return Completion{percent: p, completed: IsCourseComplete(p)}
}

func Summarize(totalLessons, completedLessons int) Completion {
	return FromPercent(ComputeCoursePercent(totalLessons, completedLessons))
}

// CompletionOf is the completion held by a stored course-level record.
func CompletionOf(rec *models.ProgressRecord) Completion {
	if rec.Completed {
		return FromPercent(100)
	}
	return FromPercent(rec.ProgressPercent)
}

func (c Completion) Percent() int { return c.percent }

func (c Completion) Completed() bool { return c.completed }

// State is the state of a course once this completion has been written.
func (c Completion) State() models.ProgressState {
	if c.completed {
		return models.StateCompleted
	}
	return models.StateInProgress
}

func (c Completion) String() string {
	return fmt.Sprintf("%d%% (completed=%t)", c.percent, c.completed)
}

// ClampPercent rounds a caller-supplied percentage and clamps it into
// [0,100]. Out-of-range input is reported but never rejected.
func ClampPercent(percent float64) (int, *ValidationError) {
	if math.IsNaN(percent) {
		return 0, NewValidationError(
			fmt.Errorf("percent is not a number"),
			FieldError{Field: "percent", Error: "must be a number"},
		)
	}
	rounded := math.Round(percent)
	switch {
	case rounded < 0:
		return 0, NewValidationError(
			fmt.Errorf("percent %v below 0", percent),
			FieldError{Field: "percent", Error: "must be at least 0"},
		)
	case rounded > 100:
		return 100, NewValidationError(
			fmt.Errorf("percent %v above 100", percent),
			FieldError{Field: "percent", Error: "must be at most 100"},
		)
	}
	return int(rounded), nil
}

// StateOf maps a course-level record (nil when absent) to its state.
func StateOf(rec *models.ProgressRecord) models.ProgressState {
	switch {
	case rec == nil:
		return models.StateNotStarted
	case rec.Completed:
		return models.StateCompleted
	default:
		return models.StateInProgress
	}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
