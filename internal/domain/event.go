package domain

import "github.com/shopspring/decimal"

// EventType classifies a simulated event from the external event source.
type EventType string

const (
	EventIncome  EventType = "Income"
	EventExpense EventType = "Expense"
)

// SimulatedEvent is a transient event produced by the simulated-event source.
// It is never persisted directly; if admitted it is converted into a ledger
// entry by the transaction engine.
type SimulatedEvent struct {
	Type     EventType       `json:"type"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"` // unsigned
}

// Signed returns the balance delta the event represents: positive for income,
// negative for expense.
func (e SimulatedEvent) Signed() decimal.Decimal {
	if e.Type == EventExpense {
		return e.Amount.Neg()
	}
	return e.Amount
}
