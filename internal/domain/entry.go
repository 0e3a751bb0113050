package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxEntries bounds the transaction history; older entries are evicted FIFO.
const MaxEntries = 200

// Entry is one immutable record of a balance-affecting event. BalanceAfter is
// a snapshot of the profile balance immediately after the entry was applied;
// entries are never mutated or reordered once created.
type Entry struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"ts"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Source       string          `json:"source"`
	Label        string          `json:"label"`
}

// Validate ensures the entry adheres to domain rules.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("entry ID cannot be empty")
	}
	if e.BalanceAfter.IsNegative() {
		return errors.New("entry balanceAfter cannot be negative")
	}
	return nil
}

// IsIncome reports whether the entry credited the balance.
func (e *Entry) IsIncome() bool {
	return e.Amount.Sign() >= 0
}

// CategorizeLabel prefixes a label with "Income"/"Expense" based on the sign
// of amount, unless it already carries one of those prefixes.
func CategorizeLabel(label string, amount decimal.Decimal) string {
	if label == "" {
		return label
	}
	if strings.HasPrefix(label, "Income") || strings.HasPrefix(label, "Expense") {
		return label
	}
	prefix := "Income"
	if amount.Sign() < 0 {
		prefix = "Expense"
	}
	return prefix + " (" + label + ")"
}

// Round2 rounds a decimal to two places, the precision of every stored amount.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampBalance rounds to two places and clamps negative results to zero.
func ClampBalance(d decimal.Decimal) decimal.Decimal {
	d = Round2(d)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// AppendEntry appends an entry to the history and trims it to MaxEntries,
// keeping the most recent entries in call order.
func AppendEntry(history []Entry, e Entry) []Entry {
	history = append(history, e)
	if len(history) > MaxEntries {
		history = history[len(history)-MaxEntries:]
	}
	return history
}
