// Package admission gates simulated expense events with a two-threshold
// hysteresis: expenses stop being admitted once the balance falls to the
// block threshold and resume only after it recovers past a higher recovery
// threshold, which prevents thrashing when the balance oscillates near a
// single boundary.
package admission

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintwitch/sessiond/internal/domain"
	"github.com/fintwitch/sessiond/internal/usecase/ledger"
)

// Decision is the outcome of gating one event against the current state.
type Decision struct {
	Admit bool
	// Blocked is the gate state after considering the event.
	Blocked bool
	// BlockTriggered is true when this event flipped the gate to Blocked.
	BlockTriggered bool
	// Recovered is true when this event observed a recovered balance and
	// flipped the gate back to Admitting.
	Recovered bool
}

// Decide applies the hysteresis rule. balance is the current (pre-event)
// balance and blocked the current gate state. Income is always admitted;
// the expense that trips the block threshold is itself dropped.
func Decide(ev domain.SimulatedEvent, balance decimal.Decimal, blocked bool, low, high decimal.Decimal) Decision {
	if ev.Type != domain.EventExpense {
		return Decision{Admit: true, Blocked: blocked}
	}

	if blocked {
		if balance.GreaterThanOrEqual(high) {
			return Decision{Admit: true, Blocked: false, Recovered: true}
		}
		return Decision{Admit: false, Blocked: true}
	}

	if balance.LessThanOrEqual(low) {
		return Decision{Admit: false, Blocked: true, BlockTriggered: true}
	}
	return Decision{Admit: true, Blocked: false}
}

// Controller polls the simulated-event source and feeds admitted events into
// the transaction engine. Gate state is kept on the profile
// (ExpensesBlocked) so it survives restarts with the rest of the ledger.
type Controller struct {
	store    domain.ProfileStore
	source   domain.EventSource
	engine   *ledger.Service
	notifier domain.Notifier
	log      zerolog.Logger

	low      decimal.Decimal
	high     decimal.Decimal
	interval time.Duration
}

// NewController creates an admission controller with the given thresholds
// and poll interval.
func NewController(
	store domain.ProfileStore,
	source domain.EventSource,
	engine *ledger.Service,
	notifier domain.Notifier,
	low, high decimal.Decimal,
	interval time.Duration,
	log zerolog.Logger,
) *Controller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Controller{
		store:    store,
		source:   source,
		engine:   engine,
		notifier: notifier,
		log:      log,
		low:      low,
		high:     high,
		interval: interval,
	}
}

// Run polls the event source until the context is cancelled. Poll failures
// are treated as "no events".
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context) {
	events, err := c.source.Poll(ctx, c.store.Read().Balance)
	if err != nil {
		c.log.Debug().Err(err).Msg("event source unavailable")
		return
	}
	for _, ev := range events {
		c.Handle(ev)
	}
}

// Handle gates one event and, if admitted, applies it through the
// transaction engine.
func (c *Controller) Handle(ev domain.SimulatedEvent) {
	// Balance and gate state are re-read per event so a burst in one poll
	// still sees each predecessor's effect.
	p := c.store.Read()
	d := Decide(ev, p.Balance, p.ExpensesBlocked, c.low, c.high)

	if d.Blocked != p.ExpensesBlocked {
		c.store.Write(func(p domain.Profile) domain.Profile {
			p.ExpensesBlocked = d.Blocked
			return p
		})
	}
	if d.BlockTriggered {
		c.log.Info().Str("balance", p.Balance.String()).Msg("expenses blocked, balance too low")
		c.notifier.Push("Expenses blocked! Recover to "+c.high.StringFixed(0)+" to resume", domain.NotifyWarning)
	}
	if d.Recovered {
		c.log.Info().Str("balance", p.Balance.String()).Msg("expenses resumed, balance recovered")
	}
	if !d.Admit {
		c.log.Debug().Str("category", ev.Category).Msg("expense dropped while blocked")
		return
	}

	entry, err := c.engine.Transact(ev.Signed(), ledger.TxOptions{
		Source: "financial_event",
		Label:  ev.Category,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("admitted event could not be applied")
		return
	}

	// Income while blocked surfaces progress toward recovery; crossing the
	// threshold flips the gate back to admitting.
	if ev.Type == domain.EventIncome && d.Blocked {
		if entry.BalanceAfter.GreaterThanOrEqual(c.high) {
			c.store.Write(func(p domain.Profile) domain.Profile {
				p.ExpensesBlocked = false
				return p
			})
			c.log.Info().Str("balance", entry.BalanceAfter.String()).Msg("expenses resumed, balance recovered")
		} else {
			remaining := c.high.Sub(entry.BalanceAfter)
			c.log.Debug().Str("remaining", remaining.StringFixed(2)).Msg("recovery progress")
		}
	}
}
