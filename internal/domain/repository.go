package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the remote store has no record for the identity.
	ErrNotFound = errors.New("profile record not found")

	// ErrNoIdentity indicates an operation that requires a resolved identity
	// was attempted while signed out.
	ErrNoIdentity = errors.New("no resolved identity")

	// ErrNetworkUnavailable indicates a collaborator could not be reached.
	ErrNetworkUnavailable = errors.New("network unavailable")
)

// ProfileMutator is a pure transformation applied to the profile snapshot.
type ProfileMutator func(Profile) Profile

// ProfileStore is the durable, process-local container for the profile.
// Write applies the mutator and persists atomically; all mutations in the
// system go through it, which serializes writers. Storage-medium errors are
// swallowed (the store degrades to its in-memory copy).
type ProfileStore interface {
	// Read returns the current snapshot, or the defined initial profile if
	// none has been written yet.
	Read() Profile

	// Write applies the mutator under the single serialized writer and
	// returns the resulting snapshot.
	Write(ProfileMutator) Profile

	// Watch registers a callback invoked after every successful Write with
	// the new snapshot. Callbacks must not call Write reentrantly.
	Watch(func(Profile))
}

// RemoteProfileStore is the eventually-consistent remote document store.
type RemoteProfileStore interface {
	// Get fetches the record for an identity. Returns ErrNotFound if absent.
	Get(ctx context.Context, identity string) (Profile, error)

	// Set writes the full record for an identity, creating it if absent.
	Set(ctx context.Context, identity string, p Profile) error

	// Update applies a partial record. Returns ErrNotFound if absent.
	Update(ctx context.Context, identity string, fields map[string]any) error
}

// AuthUser is the opaque external auth reference for a signed-in identity.
type AuthUser struct {
	UID   string
	Email string
}

// AuthGateway is the external authentication collaborator. Identity changes
// (including sign-out, delivered as nil) are pushed to subscribers.
type AuthGateway interface {
	SignIn(ctx context.Context, email, password string) (*AuthUser, error)
	SignUp(ctx context.Context, email, password string) (*AuthUser, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error

	// Subscribe registers a listener for identity changes and returns an
	// unsubscribe function. The listener is immediately called with the
	// current identity.
	Subscribe(func(*AuthUser)) (unsubscribe func())
}

// AnalyticsSink ingests ledger entries into the analytics backend.
// Fire-and-forget: failures are ignored by callers.
type AnalyticsSink interface {
	Ingest(ctx context.Context, e Entry) error
}

// BudgetLedger is the budget-allocation collaborator. Write failures are
// logged and ignored by callers.
type BudgetLedger interface {
	// Available probes the collaborator; callers skip fan-out when false.
	Available(ctx context.Context) bool

	// Init creates the budget record for a user if the system is reachable.
	Init(ctx context.Context, userID string) error

	// AllocateIncome records an income split across percentage buckets.
	AllocateIncome(ctx context.Context, userID string, amount decimal.Decimal, allocations map[string]decimal.Decimal, description string) error

	// RecordExpense records a single debit.
	RecordExpense(ctx context.Context, userID string, amount decimal.Decimal, category string) error
}

// EventSource is the simulated-event collaborator, polled on a fixed
// interval. Connection failures are treated as "no events".
type EventSource interface {
	Poll(ctx context.Context, balance decimal.Decimal) ([]SimulatedEvent, error)
}

// NotifyStyle classifies a transient user-visible notification.
type NotifyStyle string

const (
	NotifySuccess NotifyStyle = "success"
	NotifyDanger  NotifyStyle = "danger"
	NotifyWarning NotifyStyle = "warning"
)

// Notifier surfaces transient notifications to the user.
type Notifier interface {
	Push(msg string, style NotifyStyle)
}
