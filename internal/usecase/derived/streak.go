package derived

import (
	"time"

	"github.com/fintwitch/sessiond/internal/domain"
)

// StreakResult is the outcome of one streak evaluation.
type StreakResult struct {
	Streak         int
	LastCompletion string
	// Completed is true when this evaluation recorded the streak for today
	// for the first time.
	Completed bool
}

// EvaluateStreak applies the canonical streak rule. Given today's date, the
// (already normalized) daily-action flags, and the previous streak state, the
// streak increments by 1 when all three flags are true for the first time
// today and the last completion was yesterday; resets to 1 when the gap is
// longer; and is left untouched when today is already recorded or the actions
// are incomplete.
func EvaluateStreak(today time.Time, daily domain.DailyActions, streak int, lastCompletion string) StreakResult {
	unchanged := StreakResult{Streak: streak, LastCompletion: lastCompletion}

	day := domain.Day(today)
	if !daily.ForDay(day).AllDone() {
		return unchanged
	}
	if lastCompletion == day {
		// Already recorded for today; re-evaluation is a no-op.
		return unchanged
	}

	yesterday := domain.Day(today.AddDate(0, 0, -1))
	next := 1
	if lastCompletion == yesterday {
		next = streak + 1
	}
	return StreakResult{Streak: next, LastCompletion: day, Completed: true}
}
