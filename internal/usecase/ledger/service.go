// Package ledger implements the transaction engine: the single mutation path
// for balance changes. A call atomically updates the balance, appends a
// bounded ledger entry, and fans out best-effort notifications to the
// analytics and budget collaborators.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintwitch/sessiond/internal/domain"
)

// SplitPercents is the balanced allocation preset applied to every income
// fan-out: percentages per budget bucket, summing to 100.
var SplitPercents = map[string]decimal.Decimal{
	"living_expenses": decimal.NewFromInt(50),
	"emergency_fund":  decimal.NewFromInt(20),
	"investments":     decimal.NewFromInt(15),
	"savings":         decimal.NewFromInt(15),
}

// remainderBucket absorbs rounding leftovers so the split sums exactly.
const remainderBucket = "living_expenses"

// TxOptions carries the origin tag and human-readable category of a
// transaction.
type TxOptions struct {
	Source string
	Label  string
}

// Service is the transaction engine.
type Service struct {
	store     domain.ProfileStore
	analytics domain.AnalyticsSink
	budget    domain.BudgetLedger
	notifier  domain.Notifier
	identity  func() *domain.AuthUser
	log       zerolog.Logger

	fanoutTimeout time.Duration
	wg            sync.WaitGroup
}

// NewService creates a transaction engine. The identity getter reports the
// currently resolved identity, or nil when signed out.
func NewService(
	store domain.ProfileStore,
	analytics domain.AnalyticsSink,
	budget domain.BudgetLedger,
	notifier domain.Notifier,
	identity func() *domain.AuthUser,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:         store,
		analytics:     analytics,
		budget:        budget,
		notifier:      notifier,
		identity:      identity,
		log:           log,
		fanoutTimeout: 5 * time.Second,
	}
}

// Transact applies a signed balance change. The new balance is clamped at
// zero and rounded to two places, the label is auto-categorized, and the
// entry is appended with a BalanceAfter snapshot, trimming history to the
// most recent MaxEntries. Side effects run after the local write and are
// independently best-effort; a failing side effect never rolls the entry
// back. Returns domain.ErrNoIdentity (and performs no mutation) when no
// identity is resolved.
func (s *Service) Transact(amount decimal.Decimal, opts TxOptions) (domain.Entry, error) {
	user := s.identity()
	if user == nil {
		s.log.Warn().Str("source", opts.Source).Msg("transaction rejected, not authenticated")
		return domain.Entry{}, domain.ErrNoIdentity
	}

	source := opts.Source
	if source == "" {
		source = "system"
	}
	label := opts.Label
	if label == "" {
		label = source
	}
	amount = domain.Round2(amount)

	var entry domain.Entry
	var username string
	s.store.Write(func(p domain.Profile) domain.Profile {
		newBalance := domain.ClampBalance(p.Balance.Add(amount))
		entry = domain.Entry{
			ID:           uuid.NewString(),
			Timestamp:    time.Now(),
			Amount:       amount,
			BalanceAfter: newBalance,
			Source:       source,
			Label:        domain.CategorizeLabel(label, amount),
		}
		p.Balance = newBalance
		p.Transactions = domain.AppendEntry(p.Transactions, entry)
		username = p.Username
		return p
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fanOut(entry, username, opts.Label, source)
	}()

	sign := ""
	if amount.Sign() > 0 {
		sign = "+"
	}
	style := domain.NotifySuccess
	if amount.Sign() < 0 {
		style = domain.NotifyDanger
	}
	s.notifier.Push(sign+amount.StringFixed(2)+" ("+entry.Label+")", style)

	return entry, nil
}

// Flush waits for in-flight side-effect deliveries; used on shutdown and in
// tests.
func (s *Service) Flush() {
	s.wg.Wait()
}

func (s *Service) fanOut(entry domain.Entry, username, label, source string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fanoutTimeout)
	defer cancel()

	if err := s.analytics.Ingest(ctx, entry); err != nil {
		s.log.Debug().Err(err).Msg("analytics ingest skipped")
	}

	if !s.budget.Available(ctx) {
		return
	}
	category := label
	if category == "" {
		category = source
	}
	if entry.IsIncome() {
		split := BalancedSplit(entry.Amount)
		err := s.budget.AllocateIncome(ctx, username, entry.Amount, split, "Income from "+category)
		if err != nil {
			s.log.Debug().Err(err).Msg("budget allocation skipped")
		}
	} else {
		err := s.budget.RecordExpense(ctx, username, entry.Amount.Abs(), category)
		if err != nil {
			s.log.Debug().Err(err).Msg("budget expense skipped")
		}
	}
}

// BalancedSplit allocates an income amount across the preset buckets.
// Per-bucket amounts are rounded to two places and the rounding remainder is
// folded into the remainder bucket so the allocation sums exactly.
func BalancedSplit(amount decimal.Decimal) map[string]decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	out := make(map[string]decimal.Decimal, len(SplitPercents))

	allocated := decimal.Zero
	for bucket, pct := range SplitPercents {
		if bucket == remainderBucket {
			continue
		}
		v := domain.Round2(amount.Mul(pct).Div(hundred))
		out[bucket] = v
		allocated = allocated.Add(v)
	}
	out[remainderBucket] = amount.Sub(allocated)
	return out
}
