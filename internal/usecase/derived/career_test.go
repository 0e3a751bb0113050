package derived

import (
	"testing"
	"time"

	"github.com/fintwitch/sessiond/internal/domain"
	"github.com/stretchr/testify/assert"
)

var careerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCompleteCareerLevel_UnlocksToolAndAdvances(t *testing.T) {
	p := domain.NewProfile()

	res := CompleteCareerLevel(p, 1, domain.Performance{Score: 0.9, CompletedAt: careerNow}, careerNow)

	assert.Equal(t, 2, res.Profile.CareerLevel)
	assert.Equal(t, "expense_splitter", res.UnlockedTool)
	assert.Equal(t, []string{"expense_splitter"}, res.Profile.UnlockedTools)
	assert.True(t, res.Profile.DailyActions.CareerLevel)
	assert.Contains(t, res.Profile.CareerProgress, 1)
}

func TestCompleteCareerLevel_UnlockIsIdempotent(t *testing.T) {
	p := domain.NewProfile()
	p.UnlockedTools = []string{"expense_splitter"}
	p.CareerLevel = 2

	res := CompleteCareerLevel(p, 1, domain.Performance{}, careerNow)

	assert.Empty(t, res.UnlockedTool)
	assert.Equal(t, []string{"expense_splitter"}, res.Profile.UnlockedTools)
}

func TestCompleteCareerLevel_NeverRegressesLevel(t *testing.T) {
	p := domain.NewProfile()
	p.CareerLevel = 5

	res := CompleteCareerLevel(p, 2, domain.Performance{}, careerNow)

	assert.Equal(t, 5, res.Profile.CareerLevel)
}

func TestCompleteCareerLevel_CapsAtMaxLevel(t *testing.T) {
	p := domain.NewProfile()
	p.CareerLevel = 6

	res := CompleteCareerLevel(p, 6, domain.Performance{}, careerNow)

	assert.Equal(t, domain.MaxCareerLevel, res.Profile.CareerLevel)
	assert.Equal(t, "wealth_dashboard", res.UnlockedTool)
}

func TestCompleteCareerLevel_FinishesStreakWhenLastAction(t *testing.T) {
	p := domain.NewProfile()
	p.Streak = 2
	p.LastStreakCompletion = domain.Day(careerNow.AddDate(0, 0, -1))
	p.DailyActions = domain.DailyActions{
		Date:            domain.Day(careerNow),
		ReadArticle:     true,
		ReviewPortfolio: true,
	}

	res := CompleteCareerLevel(p, 1, domain.Performance{}, careerNow)

	assert.True(t, res.StreakCompleted)
	assert.Equal(t, 3, res.Profile.Streak)
}

func TestTrackDailyAction_MarksAndRollsOverDay(t *testing.T) {
	p := domain.NewProfile()
	p.DailyActions = domain.DailyActions{
		Date:        domain.Day(careerNow.AddDate(0, 0, -1)),
		ReadArticle: true,
		CareerLevel: true,
	}

	updated, res := TrackDailyAction(p, domain.ActionReviewPortfolio, careerNow)

	// Yesterday's flags must not leak into today.
	assert.Equal(t, domain.Day(careerNow), updated.DailyActions.Date)
	assert.False(t, updated.DailyActions.ReadArticle)
	assert.True(t, updated.DailyActions.ReviewPortfolio)
	assert.False(t, res.Completed)
}

func TestTrackDailyAction_CompletingAllThreeBumpsStreak(t *testing.T) {
	p := domain.NewProfile()
	p.Streak = 1
	p.LastStreakCompletion = domain.Day(careerNow.AddDate(0, 0, -1))
	p.DailyActions = domain.DailyActions{
		Date:        domain.Day(careerNow),
		ReadArticle: true,
		CareerLevel: true,
	}

	updated, res := TrackDailyAction(p, domain.ActionReviewPortfolio, careerNow)

	assert.True(t, res.Completed)
	assert.Equal(t, 2, updated.Streak)
	assert.Equal(t, domain.Day(careerNow), updated.LastStreakCompletion)
}

func TestTrackDailyAction_RepeatedActionIsNoOp(t *testing.T) {
	p := domain.NewProfile()
	p.DailyActions = domain.DailyActions{Date: domain.Day(careerNow), ReadArticle: true}

	updated, res := TrackDailyAction(p, domain.ActionReadArticle, careerNow)

	assert.Equal(t, p.DailyActions, updated.DailyActions)
	assert.False(t, res.Completed)
}
