package derived

import (
	"time"

	"github.com/fintwitch/sessiond/internal/domain"
)

// Tools is the fixed ordered unlock roadmap: completing career level n
// unlocks Tools[n-1].
var Tools = []string{
	"expense_splitter",
	"emergency_fund",
	"emi",
	"sip",
	"fire",
	"wealth_dashboard",
}

// CareerResult is the outcome of completing a career level.
type CareerResult struct {
	Profile domain.Profile
	// UnlockedTool is the tool newly unlocked by this completion, or empty
	// if the tool was already held (unlocking is idempotent).
	UnlockedTool string
	// StreakCompleted is true when this completion finished today's streak.
	StreakCompleted bool
}

// CompleteCareerLevel records performance for a completed level, unlocks the
// matching tool at most once, advances the career level monotonically, marks
// the career daily action, and runs the canonical streak evaluation.
func CompleteCareerLevel(p domain.Profile, level int, perf domain.Performance, now time.Time) CareerResult {
	p = p.Clone()

	next := level + 1
	if next > domain.MaxCareerLevel {
		next = domain.MaxCareerLevel
	}
	if next > p.CareerLevel {
		p.CareerLevel = next
	}

	p.CareerProgress[level] = perf

	var unlocked string
	if level >= 1 && level <= len(Tools) {
		tool := Tools[level-1]
		if !p.HasTool(tool) {
			p.UnlockedTools = append(p.UnlockedTools, tool)
			unlocked = tool
		}
	}

	p.DailyActions = p.DailyActions.ForDay(domain.Day(now)).Set(domain.ActionCareerLevel)

	res := EvaluateStreak(now, p.DailyActions, p.Streak, p.LastStreakCompletion)
	p.Streak = res.Streak
	p.LastStreakCompletion = res.LastCompletion

	return CareerResult{Profile: p, UnlockedTool: unlocked, StreakCompleted: res.Completed}
}

// TrackDailyAction marks one daily action done, handling day rollover, and
// runs the canonical streak evaluation. Marking an already-done action is a
// no-op.
func TrackDailyAction(p domain.Profile, kind domain.ActionKind, now time.Time) (domain.Profile, StreakResult) {
	p = p.Clone()

	daily := p.DailyActions.ForDay(domain.Day(now))
	updated := daily.Set(kind)
	if updated == daily && daily.Date == p.DailyActions.Date {
		return p, StreakResult{Streak: p.Streak, LastCompletion: p.LastStreakCompletion}
	}
	p.DailyActions = updated

	res := EvaluateStreak(now, p.DailyActions, p.Streak, p.LastStreakCompletion)
	p.Streak = res.Streak
	p.LastStreakCompletion = res.LastCompletion
	return p, res
}
