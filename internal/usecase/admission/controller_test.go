package admission

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintwitch/sessiond/internal/adapter/repository/memory"
	"github.com/fintwitch/sessiond/internal/domain"
	"github.com/fintwitch/sessiond/internal/logger"
	"github.com/fintwitch/sessiond/internal/notify"
	"github.com/fintwitch/sessiond/internal/usecase/ledger"
)

type stubAnalytics struct{}

func (stubAnalytics) Ingest(context.Context, domain.Entry) error { return nil }

type stubBudget struct{}

func (stubBudget) Available(context.Context) bool { return false }
func (stubBudget) Init(context.Context, string) error {
	return nil
}
func (stubBudget) AllocateIncome(context.Context, string, decimal.Decimal, map[string]decimal.Decimal, string) error {
	return nil
}
func (stubBudget) RecordExpense(context.Context, string, decimal.Decimal, string) error {
	return nil
}

type stubSource struct {
	events []domain.SimulatedEvent
	err    error
	polls  int
}

func (s *stubSource) Poll(context.Context, decimal.Decimal) ([]domain.SimulatedEvent, error) {
	s.polls++
	return s.events, s.err
}

func expense(amount int64) domain.SimulatedEvent {
	return domain.SimulatedEvent{Type: domain.EventExpense, Category: "Shopping", Amount: decimal.NewFromInt(amount)}
}

func income(amount int64) domain.SimulatedEvent {
	return domain.SimulatedEvent{Type: domain.EventIncome, Category: "Freelance", Amount: decimal.NewFromInt(amount)}
}

func newController(t *testing.T, balance int64, source domain.EventSource) (*Controller, *memory.Store, *notify.Memory) {
	t.Helper()
	store := memory.NewStore()
	store.Write(func(p domain.Profile) domain.Profile {
		p.Username = "trader_jo"
		p.Balance = decimal.NewFromInt(balance)
		return p
	})
	notifier := &notify.Memory{}
	engine := ledger.NewService(store, stubAnalytics{}, stubBudget{}, notifier,
		func() *domain.AuthUser { return &domain.AuthUser{UID: "uid-1"} }, logger.Nop())
	c := NewController(store, source, engine, notifier,
		decimal.NewFromInt(100), decimal.NewFromInt(800), 0, logger.Nop())
	return c, store, notifier
}

func TestHandle_HysteresisCycle(t *testing.T) {
	c, store, notifier := newController(t, 90, nil)

	// Expense at balance 90 (<= 100): dropped, gate flips to Blocked.
	c.Handle(expense(40))
	p := store.Read()
	assert.True(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(90).Equal(p.Balance))
	assert.Empty(t, p.Transactions)

	// The first block surfaces a warning notification.
	require.NotEmpty(t, notifier.All())
	assert.Equal(t, domain.NotifyWarning, notifier.All()[0].Style)

	// Expenses keep being dropped while below the recovery threshold.
	c.Handle(expense(25))
	p = store.Read()
	assert.True(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(90).Equal(p.Balance))

	// Income is always admitted; 90 + 710 = 800 meets the recovery
	// threshold and flips the gate back to Admitting.
	c.Handle(income(710))
	p = store.Read()
	assert.False(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(800).Equal(p.Balance))

	// The next expense at balance 800 is admitted normally.
	c.Handle(expense(30))
	p = store.Read()
	assert.False(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(770).Equal(p.Balance))
	assert.Equal(t, "Expense (Shopping)", p.Transactions[len(p.Transactions)-1].Label)
}

func TestHandle_BlockAndRecoverScenario(t *testing.T) {
	c, store, _ := newController(t, 95, nil)

	// Balance 95, incoming expense of 40: dropped, gate blocked, balance kept.
	c.Handle(expense(40))
	p := store.Read()
	assert.True(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(95).Equal(p.Balance))

	// Income of 750: admitted, balance 845 crosses 800, gate reopens.
	c.Handle(income(750))
	p = store.Read()
	assert.False(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(845).Equal(p.Balance))
}

func TestHandle_IncomeBelowRecoveryKeepsGateBlocked(t *testing.T) {
	c, store, _ := newController(t, 90, nil)

	c.Handle(expense(10))
	c.Handle(income(200))

	p := store.Read()
	assert.True(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(290).Equal(p.Balance))
}

func TestHandle_BlockedExpenseAtRecoveredBalanceIsAdmitted(t *testing.T) {
	c, store, _ := newController(t, 900, nil)
	store.Write(func(p domain.Profile) domain.Profile {
		p.ExpensesBlocked = true
		return p
	})

	// Pre-event balance already >= 800: gate reopens and the event passes.
	c.Handle(expense(100))

	p := store.Read()
	assert.False(t, p.ExpensesBlocked)
	assert.True(t, decimal.NewFromInt(800).Equal(p.Balance))
}

func TestHandle_WarningPushedOnlyOnBlockTransition(t *testing.T) {
	c, _, notifier := newController(t, 50, nil)

	c.Handle(expense(10))
	c.Handle(expense(10))
	c.Handle(expense(10))

	warnings := 0
	for _, n := range notifier.All() {
		if n.Style == domain.NotifyWarning {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestPollOnce_SourceFailuresAreSilent(t *testing.T) {
	source := &stubSource{err: domain.ErrNetworkUnavailable}
	c, store, _ := newController(t, 500, source)

	c.pollOnce(context.Background())

	assert.Equal(t, 1, source.polls)
	assert.Empty(t, store.Read().Transactions)
}

func TestPollOnce_AdmitsEachEventAgainstUpdatedBalance(t *testing.T) {
	source := &stubSource{events: []domain.SimulatedEvent{expense(60), expense(60)}}
	c, store, _ := newController(t, 200, source)

	c.pollOnce(context.Background())

	// 200 - 60 = 140, then 140 - 60 = 80; both above the block threshold
	// at admission time.
	p := store.Read()
	assert.True(t, decimal.NewFromInt(80).Equal(p.Balance))
	assert.Len(t, p.Transactions, 2)
	assert.False(t, p.ExpensesBlocked)
}
