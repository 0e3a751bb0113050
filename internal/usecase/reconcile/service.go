// Package reconcile brings the local profile store into agreement with the
// remote document store: one bounded-time fetch per identity resolution, a
// signup path that owns record creation, and a debounced best-effort push of
// local changes. Every failure mode degrades to local-only operation; the
// session is never left waiting on an unreachable remote.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintwitch/sessiond/internal/domain"
)

// Options carries the reconciliation timings. Zero values fall back to the
// defaults.
type Options struct {
	FetchTimeout time.Duration // remote fetch budget, default 4s
	WriteTimeout time.Duration // remote write budget, default 5s
	SyncDebounce time.Duration // quiet period before a push, default 1.5s
	SignupGrace  time.Duration // lock-release delay after signup, default 1s
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 4 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SyncDebounce <= 0 {
		o.SyncDebounce = 1500 * time.Millisecond
	}
	if o.SignupGrace <= 0 {
		o.SignupGrace = time.Second
	}
	return o
}

// Service is the remote reconciler.
type Service struct {
	local  domain.ProfileStore
	remote domain.RemoteProfileStore
	budget domain.BudgetLedger
	log    zerolog.Logger
	opts   Options

	// fetching guards reentrant reconciliation: overlapping triggers are
	// dropped, not queued. signingUp is the signup lock checked by the
	// auth-listener path.
	fetching  atomic.Bool
	signingUp atomic.Bool

	syncMu    sync.Mutex
	syncTimer *time.Timer
}

// NewService creates a reconciler between the local and remote stores.
func NewService(local domain.ProfileStore, remote domain.RemoteProfileStore, budget domain.BudgetLedger, opts Options, log zerolog.Logger) *Service {
	return &Service{
		local:  local,
		remote: remote,
		budget: budget,
		log:    log,
		opts:   opts.withDefaults(),
	}
}

// ResolveIdentity reconciles local state against the remote record for a
// newly reported identity. While a signup is in progress the call is skipped
// entirely: the signup flow owns record creation, and racing it here could
// double-initialize the record. Overlapping calls are dropped by the
// reentrancy guard so two quick auth notifications produce exactly one
// remote fetch.
func (s *Service) ResolveIdentity(ctx context.Context, user *domain.AuthUser) {
	if user == nil {
		return
	}
	if s.signingUp.Load() {
		s.log.Debug().Str("uid", user.UID).Msg("signup in progress, skipping profile fetch")
		return
	}
	if !s.fetching.CompareAndSwap(false, true) {
		s.log.Debug().Str("uid", user.UID).Msg("reconciliation already in flight, dropped")
		return
	}
	defer s.fetching.Store(false)

	s.log.Debug().Str("uid", user.UID).Msg("resolving profile")

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	remote, err := s.remote.Get(fetchCtx, user.UID)
	switch {
	case err == nil:
		s.local.Write(func(local domain.Profile) domain.Profile {
			return mergeRemote(local, remote)
		})
		if remote.Username != "" {
			go s.initBudget(remote.Username)
		}

	case errors.Is(err, domain.ErrNotFound):
		// New user: synthesize the initial profile from any local-only
		// state, write it remotely fire-and-forget, and keep it locally.
		initial := s.local.Read()
		if initial.Username == "" {
			initial.Username = domain.FallbackUsername(user.Email)
		}
		if initial.Balance.LessThan(domain.DefaultInitialBalance) {
			initial.Balance = domain.DefaultInitialBalance
		}
		go s.writeRecord(user.UID, initial)
		s.local.Write(func(domain.Profile) domain.Profile { return initial })

	default:
		// Timeout or unavailability: keep local state so the session is
		// never stuck pending; only seed a display name if none exists.
		s.log.Warn().Err(err).Msg("profile fetch failed, keeping local state")
		if s.local.Read().Username == "" {
			s.local.Write(func(p domain.Profile) domain.Profile {
				p.Username = domain.FallbackUsername(user.Email)
				return p
			})
		}
	}
}

// BeginSignup acquires the signup lock. It must be taken before the remote
// identity is created so the auth-listener skip-check can observe it.
func (s *Service) BeginSignup() {
	s.signingUp.Store(true)
}

// FinishSignup releases the signup lock after a short grace delay, long
// enough for a late auth-change notification to still observe it.
func (s *Service) FinishSignup() {
	time.AfterFunc(s.opts.SignupGrace, func() {
		s.signingUp.Store(false)
	})
}

// SignupInProgress reports whether the signup lock is held.
func (s *Service) SignupInProgress() bool {
	return s.signingUp.Load()
}

// CreateRecord initializes the profile for a freshly created identity. The
// remote write is bounded and non-fatal: when the store is unreachable the
// profile still exists locally and the debounced sync converges later.
func (s *Service) CreateRecord(user *domain.AuthUser, username string) domain.Profile {
	initial := domain.NewProfile()
	initial.Username = username
	initial.LastLogin = time.Now()

	s.writeRecord(user.UID, initial)
	return s.local.Write(func(domain.Profile) domain.Profile { return initial })
}

func (s *Service) writeRecord(identity string, p domain.Profile) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	if err := s.remote.Set(ctx, identity, p); err != nil {
		s.log.Warn().Err(err).Msg("remote record init failed, continuing locally")
	}
}

func (s *Service) initBudget(username string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	if !s.budget.Available(ctx) {
		return
	}
	if err := s.budget.Init(ctx, username); err != nil {
		s.log.Debug().Err(err).Msg("budget init skipped")
	}
}

// ScheduleSync (re)arms the debounced background push for the identity. A
// burst of local mutations collapses into one push of the last-known state.
func (s *Service) ScheduleSync(identity string) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.syncTimer != nil {
		s.syncTimer.Stop()
	}
	s.syncTimer = time.AfterFunc(s.opts.SyncDebounce, func() {
		s.syncNow(identity)
	})
}

// CancelSync stops any pending debounced push; called on sign-out.
func (s *Service) CancelSync() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.syncTimer != nil {
		s.syncTimer.Stop()
		s.syncTimer = nil
	}
}

func (s *Service) syncNow(identity string) {
	if identity == "" || s.fetching.Load() || s.signingUp.Load() {
		return
	}

	p := s.local.Read()
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()

	err := s.remote.Update(ctx, identity, syncFields(p))
	if errors.Is(err, domain.ErrNotFound) {
		// Record vanished or was never created; fall back to a full write.
		err = s.remote.Set(ctx, identity, p)
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("background sync skipped")
	}
}

// syncFields selects the fields pushed by the background sync. The XP
// subsystem (xp counter, completed lessons) is excluded so a concurrent
// writer of those fields is never clobbered by a stale push.
func syncFields(p domain.Profile) map[string]any {
	return map[string]any{
		"username":             p.Username,
		"balance":              p.Balance,
		"transactions":         p.Transactions,
		"streak":               p.Streak,
		"lastStreakCompletion": p.LastStreakCompletion,
		"dailyActions":         p.DailyActions,
		"careerLevel":          p.CareerLevel,
		"careerProgress":       p.CareerProgress,
		"unlockedTools":        p.UnlockedTools,
		"readArticles":         p.ReadArticles,
		"investments":          p.Investments,
		"habitStats":           p.HabitStats,
		"mode":                 p.Mode,
		"tradingLicense":       p.TradingLicense,
		"lastLogin":            p.LastLogin,
	}
}

// mergeRemote merges a fetched record into the local profile: remote wins
// for every field it carries, while local-only in-flight state (the
// admission gate) and fields the record does not carry are preserved.
func mergeRemote(local, remote domain.Profile) domain.Profile {
	merged := remote.Clone()

	merged.ExpensesBlocked = local.ExpensesBlocked

	if merged.Username == "" {
		merged.Username = local.Username
	}
	if merged.CareerLevel == 0 {
		merged.CareerLevel = local.CareerLevel
	}
	if merged.Mode == "" {
		merged.Mode = local.Mode
	}
	// Nilness must be checked on the record as fetched: Clone allocates
	// empty maps, so a record that omitted these fields would otherwise
	// wipe the local values.
	if remote.CareerProgress == nil {
		merged.CareerProgress = local.CareerProgress
	}
	if remote.ReadArticles == nil {
		merged.ReadArticles = local.ReadArticles
	}
	if remote.HabitStats == nil {
		merged.HabitStats = local.HabitStats
	}
	return merged
}
