package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInitialBalance is the starting balance granted to a fresh profile.
var DefaultInitialBalance = decimal.NewFromInt(10000)

// MaxCareerLevel is the highest reachable career level.
const MaxCareerLevel = 6

// Mode selects which part of the product the session is driving.
type Mode string

const (
	ModeCareer         Mode = "career"
	ModeFinancialTools Mode = "financial_tools"
)

// ActionKind identifies one of the three tracked daily actions.
type ActionKind string

const (
	ActionReadArticle     ActionKind = "read_article"
	ActionCareerLevel     ActionKind = "career_level"
	ActionReviewPortfolio ActionKind = "review_portfolio"
)

// DailyActions tracks which of the three daily actions were completed on Date.
// Date is a calendar day in DayFormat; an empty Date means no action yet.
type DailyActions struct {
	Date            string `json:"date"`
	ReadArticle     bool   `json:"readArticle"`
	CareerLevel     bool   `json:"careerLevel"`
	ReviewPortfolio bool   `json:"reviewPortfolio"`
}

// AllDone reports whether all three daily actions are completed.
func (d DailyActions) AllDone() bool {
	return d.ReadArticle && d.CareerLevel && d.ReviewPortfolio
}

// ForDay returns the actions normalized to the given day: flags carry over
// only when Date matches, otherwise they reset to false.
func (d DailyActions) ForDay(day string) DailyActions {
	if d.Date == day {
		return d
	}
	return DailyActions{Date: day}
}

// Set returns a copy with the given action marked done.
func (d DailyActions) Set(kind ActionKind) DailyActions {
	switch kind {
	case ActionReadArticle:
		d.ReadArticle = true
	case ActionCareerLevel:
		d.CareerLevel = true
	case ActionReviewPortfolio:
		d.ReviewPortfolio = true
	}
	return d
}

// HabitDomain identifies one of the self-assessed habit areas.
type HabitDomain string

const (
	HabitSavings   HabitDomain = "savings"
	HabitSpending  HabitDomain = "spending"
	HabitInvesting HabitDomain = "investing"
)

// HabitStat is a self-assessed score and note for one habit domain.
type HabitStat struct {
	Score int    `json:"score"`
	Note  string `json:"note"`
}

// Investment is a position currently held by the user. Realizing it credits
// amount*multiplier back through the ledger.
type Investment struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
	OpenedAt time.Time       `json:"openedAt"`
}

// Performance records how a completed career level went.
type Performance struct {
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

// Profile is the full per-user state: balance, bounded transaction history,
// and the derived gamification counters. It is exclusively owned by the
// session; every mutation goes through the ledger store's serialized Write.
type Profile struct {
	Username             string                    `json:"username"`
	Balance              decimal.Decimal           `json:"balance"`
	Transactions         []Entry                   `json:"transactions"`
	Streak               int                       `json:"streak"`
	LastStreakCompletion string                    `json:"lastStreakCompletion"`
	DailyActions         DailyActions              `json:"dailyActions"`
	CareerLevel          int                       `json:"careerLevel"`
	CareerProgress       map[int]Performance       `json:"careerProgress"`
	UnlockedTools        []string                  `json:"unlockedTools"`
	ReadArticles         map[string]bool           `json:"readArticles"`
	Investments          []Investment              `json:"investments"`
	HabitStats           map[HabitDomain]HabitStat `json:"habitStats"`
	Mode                 Mode                      `json:"mode"`
	TradingLicense       bool                      `json:"tradingLicense"`
	ExpensesBlocked      bool                      `json:"expensesBlocked"`
	XP                   int64                     `json:"xp"`
	CompletedLessons     []string                  `json:"completedLessons"`
	LastLogin            time.Time                 `json:"lastLogin"`
}

// NewProfile returns the defined initial profile for a fresh identity.
func NewProfile() Profile {
	return Profile{
		Balance:     DefaultInitialBalance,
		CareerLevel: 1,
		Mode:        ModeCareer,
		CareerProgress: map[int]Performance{},
		ReadArticles:   map[string]bool{},
		HabitStats: map[HabitDomain]HabitStat{
			HabitSavings:   {Score: 1},
			HabitSpending:  {Score: 1},
			HabitInvesting: {Score: 1},
		},
	}
}

// Clone returns a deep copy so mutators can be applied without aliasing the
// stored snapshot.
func (p Profile) Clone() Profile {
	c := p
	c.Transactions = append([]Entry(nil), p.Transactions...)
	c.UnlockedTools = append([]string(nil), p.UnlockedTools...)
	c.Investments = append([]Investment(nil), p.Investments...)
	c.CompletedLessons = append([]string(nil), p.CompletedLessons...)
	c.CareerProgress = make(map[int]Performance, len(p.CareerProgress))
	for k, v := range p.CareerProgress {
		c.CareerProgress[k] = v
	}
	c.ReadArticles = make(map[string]bool, len(p.ReadArticles))
	for k, v := range p.ReadArticles {
		c.ReadArticles[k] = v
	}
	c.HabitStats = make(map[HabitDomain]HabitStat, len(p.HabitStats))
	for k, v := range p.HabitStats {
		c.HabitStats[k] = v
	}
	return c
}

// HasTool reports whether the given tool has been unlocked.
func (p Profile) HasTool(tool string) bool {
	for _, t := range p.UnlockedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// DayFormat is the calendar-day layout used for streak and daily-action dates.
const DayFormat = "2006-01-02"

// Day formats a time as a calendar day string.
func Day(t time.Time) string {
	return t.Format(DayFormat)
}

// FallbackUsername derives a display name from an email address, defaulting
// to "Trader" when the email is empty.
func FallbackUsername(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "Trader"
}
