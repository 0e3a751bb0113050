package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintwitch/sessiond/internal/domain"
	"github.com/fintwitch/sessiond/internal/logger"
)

func TestStore_ReadReturnsInitialProfileWhenEmpty(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "profile.db"), logger.Nop())
	defer func() { _ = s.Close() }()

	p := s.Read()

	assert.True(t, domain.DefaultInitialBalance.Equal(p.Balance))
	assert.Equal(t, 1, p.CareerLevel)
	assert.Empty(t, p.Transactions)
}

func TestStore_WriteSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "profile.db")

	s := Open(dbPath, logger.Nop())
	s.Write(func(p domain.Profile) domain.Profile {
		p.Username = "trader_jo"
		p.Balance = decimal.RequireFromString("9850.25")
		p.Streak = 3
		p.UnlockedTools = []string{"expense_splitter"}
		p.Transactions = domain.AppendEntry(p.Transactions, domain.Entry{
			ID:           "e1",
			Timestamp:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("-149.75"),
			BalanceAfter: decimal.RequireFromString("9850.25"),
			Source:       "manual",
			Label:        "Expense (Food)",
		})
		return p
	})
	require.NoError(t, s.Close())

	reopened := Open(dbPath, logger.Nop())
	defer func() { _ = reopened.Close() }()
	p := reopened.Read()

	assert.Equal(t, "trader_jo", p.Username)
	assert.True(t, decimal.RequireFromString("9850.25").Equal(p.Balance))
	assert.Equal(t, 3, p.Streak)
	assert.Equal(t, []string{"expense_splitter"}, p.UnlockedTools)
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "Expense (Food)", p.Transactions[0].Label)
	assert.True(t, decimal.RequireFromString("-149.75").Equal(p.Transactions[0].Amount))
}

func TestStore_WatchFiresAfterEveryWrite(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "profile.db"), logger.Nop())
	defer func() { _ = s.Close() }()

	var seen []string
	s.Watch(func(p domain.Profile) { seen = append(seen, p.Username) })

	s.Write(func(p domain.Profile) domain.Profile { p.Username = "a"; return p })
	s.Write(func(p domain.Profile) domain.Profile { p.Username = "b"; return p })

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestStore_DegradesToMemoryOnBadPath(t *testing.T) {
	// A path whose parent cannot be created forces the in-memory fallback.
	s := Open(string([]byte{0})+"/nope/profile.db", logger.Nop())

	p := s.Write(func(p domain.Profile) domain.Profile { p.Username = "memory"; return p })

	assert.Equal(t, "memory", p.Username)
	assert.Equal(t, "memory", s.Read().Username)
}
