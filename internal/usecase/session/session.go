// Package session owns the per-user lifecycle: it reacts to identity
// changes from the auth gateway, drives reconciliation, exposes the mutation
// operations, and runs the background pollers while a user is signed in.
// All state that used to be ambient (signup locks, listener flags, the
// "budget reachable" probe) lives on the session object and is torn down
// with it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintwitch/sessiond/internal/domain"
	"github.com/fintwitch/sessiond/internal/usecase/admission"
	"github.com/fintwitch/sessiond/internal/usecase/derived"
	"github.com/fintwitch/sessiond/internal/usecase/ledger"
	"github.com/fintwitch/sessiond/internal/usecase/reconcile"
)

// loadingSafety bounds how long the session may report itself as loading.
const loadingSafety = 10 * time.Second

// Deps are the collaborators a session is wired against.
type Deps struct {
	Store     domain.ProfileStore
	Auth      domain.AuthGateway
	Remote    domain.RemoteProfileStore
	Analytics domain.AnalyticsSink
	Budget    domain.BudgetLedger
	Events    domain.EventSource
	Notifier  domain.Notifier
	Log       zerolog.Logger
}

// Config are the engine thresholds and timings.
type Config struct {
	BlockThreshold    decimal.Decimal
	RecoveryThreshold decimal.Decimal
	PollInterval      time.Duration
	Reconcile         reconcile.Options
}

// Session is the per-user state engine.
type Session struct {
	log      zerolog.Logger
	store    domain.ProfileStore
	auth     domain.AuthGateway
	notifier domain.Notifier

	reconciler *reconcile.Service
	engine     *ledger.Service
	admitter   *admission.Controller

	mu          sync.Mutex
	user        *domain.AuthUser
	loading     bool
	stopPollers context.CancelFunc
	unsubscribe func()
	safety      *time.Timer
}

// New wires a session from its collaborators. Call Start to begin listening
// for identity changes.
func New(deps Deps, cfg Config) *Session {
	s := &Session{
		log:      deps.Log,
		store:    deps.Store,
		auth:     deps.Auth,
		notifier: deps.Notifier,
		loading:  true,
	}

	s.reconciler = reconcile.NewService(deps.Store, deps.Remote, deps.Budget, cfg.Reconcile, deps.Log)
	s.engine = ledger.NewService(deps.Store, deps.Analytics, deps.Budget, deps.Notifier, s.Identity, deps.Log)
	s.admitter = admission.NewController(deps.Store, deps.Events, s.engine, deps.Notifier,
		cfg.BlockThreshold, cfg.RecoveryThreshold, cfg.PollInterval, deps.Log)

	// Every profile change re-arms the debounced remote push.
	deps.Store.Watch(func(domain.Profile) {
		if user := s.Identity(); user != nil {
			s.reconciler.ScheduleSync(user.UID)
		}
	})

	return s
}

// Start subscribes to identity changes. The safety timer guarantees the
// session never reports loading forever, whatever the auth gateway does.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.safety = time.AfterFunc(loadingSafety, func() { s.setLoading(false) })
	s.mu.Unlock()

	s.unsubscribe = s.auth.Subscribe(func(user *domain.AuthUser) {
		s.onAuthChange(ctx, user)
	})
}

// Close tears the session down: pollers stop, the auth subscription and any
// pending sync are cancelled, and in-flight side effects are flushed.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	if s.safety != nil {
		s.safety.Stop()
	}
	stop := s.stopPollers
	s.stopPollers = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.reconciler.CancelSync()
	s.engine.Flush()
}

func (s *Session) onAuthChange(ctx context.Context, user *domain.AuthUser) {
	if user == nil {
		s.mu.Lock()
		s.user = nil
		stop := s.stopPollers
		s.stopPollers = nil
		s.loading = false
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.reconciler.CancelSync()
		return
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	go func() {
		s.reconciler.ResolveIdentity(ctx, user)
		s.setLoading(false)
		s.startPollers()
	}()
}

func (s *Session) startPollers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopPollers != nil || s.user == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPollers = cancel
	go s.admitter.Run(ctx)
	s.log.Debug().Msg("event polling started")
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Identity returns the currently resolved identity, or nil when signed out.
func (s *Session) Identity() *domain.AuthUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Loading reports whether an identity resolution is still pending.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Profile returns the current profile snapshot.
func (s *Session) Profile() domain.Profile {
	return s.store.Read()
}

// SignIn authenticates and resolves the profile for the identity.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	s.setLoading(true)
	user, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		msg := "Invalid credentials"
		if errors.Is(err, domain.ErrNetworkUnavailable) {
			msg = "Network error - check connection"
		}
		s.notifier.Push(msg, domain.NotifyDanger)
		s.setLoading(false)
		return err
	}
	s.reconciler.ResolveIdentity(ctx, user)
	s.setLoading(false)
	return nil
}

// SignUp creates a new identity and its initial profile record. The signup
// lock is taken before the identity exists so the auth-listener path cannot
// race this flow into double-creating the record.
func (s *Session) SignUp(ctx context.Context, email, password, username string) error {
	s.setLoading(true)
	s.reconciler.BeginSignup()
	defer s.reconciler.FinishSignup()

	user, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		s.notifier.Push(err.Error(), domain.NotifyDanger)
		s.setLoading(false)
		return err
	}

	s.reconciler.CreateRecord(user, username)
	s.setLoading(false)
	return nil
}

// SignOut ends the session; the auth gateway's nil notification tears down
// the pollers.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("sign-out reported an error")
	}
	s.store.Write(func(p domain.Profile) domain.Profile {
		p.Username = ""
		return p
	})
	s.notifier.Push("Signed out successfully", domain.NotifySuccess)
	return err
}

// ResetPassword requests a password reset for the email.
func (s *Session) ResetPassword(ctx context.Context, email string) error {
	return s.auth.ResetPassword(ctx, email)
}

// Transact applies a signed balance change through the transaction engine.
func (s *Session) Transact(amount decimal.Decimal, opts ledger.TxOptions) (domain.Entry, error) {
	return s.engine.Transact(amount, opts)
}

// MarkArticleRead credits the reading reward at most once per article.
func (s *Session) MarkArticleRead(id string, reward decimal.Decimal) error {
	already := false
	s.store.Write(func(p domain.Profile) domain.Profile {
		if p.ReadArticles[id] {
			already = true
			return p
		}
		p.ReadArticles[id] = true
		return p
	})
	if already {
		return nil
	}
	_, err := s.engine.Transact(reward, ledger.TxOptions{Source: "article", Label: "Article Reward"})
	return err
}

// Invest records a held position.
func (s *Session) Invest(inv domain.Investment) {
	s.store.Write(func(p domain.Profile) domain.Profile {
		p.Investments = append(p.Investments, inv)
		return p
	})
}

// RealizeInvestment closes a position and credits amount*multiplier.
func (s *Session) RealizeInvestment(id string, multiplier decimal.Decimal) error {
	var returned decimal.Decimal
	found := false
	s.store.Write(func(p domain.Profile) domain.Profile {
		for i, inv := range p.Investments {
			if inv.ID == id {
				found = true
				returned = domain.Round2(inv.Amount.Mul(multiplier))
				p.Investments = append(p.Investments[:i], p.Investments[i+1:]...)
				break
			}
		}
		return p
	})
	if !found {
		return errors.New("investment not found: " + id)
	}
	_, err := s.engine.Transact(returned, ledger.TxOptions{Source: "investment", Label: "Investment Return"})
	return err
}

// CompleteCareerLevel records a completed level, unlocking its tool and
// running the daily-action/streak evaluation.
func (s *Session) CompleteCareerLevel(level int, perf domain.Performance) {
	var res derived.CareerResult
	now := time.Now()
	s.store.Write(func(p domain.Profile) domain.Profile {
		res = derived.CompleteCareerLevel(p, level, perf, now)
		return res.Profile
	})
	if res.UnlockedTool != "" {
		name := strings.ToUpper(strings.ReplaceAll(res.UnlockedTool, "_", " "))
		s.notifier.Push("Tool unlocked: "+name, domain.NotifySuccess)
	}
	if res.StreakCompleted {
		s.notifier.Push("Daily Streak Achieved!", domain.NotifySuccess)
	}
}

// TrackDailyAction marks one daily action done and evaluates the streak.
func (s *Session) TrackDailyAction(kind domain.ActionKind) {
	var res derived.StreakResult
	now := time.Now()
	s.store.Write(func(p domain.Profile) domain.Profile {
		next, r := derived.TrackDailyAction(p, kind, now)
		res = r
		return next
	})
	if res.Completed {
		s.notifier.Push("Daily Streak Achieved!", domain.NotifySuccess)
	}
}

// UpdateHabitStats records a self-assessment for one habit domain.
func (s *Session) UpdateHabitStats(h domain.HabitDomain, score int, note string) {
	s.store.Write(func(p domain.Profile) domain.Profile {
		p.HabitStats[h] = domain.HabitStat{Score: score, Note: note}
		return p
	})
}

// tradingLicenseBonus is credited once when the training quiz is passed.
var tradingLicenseBonus = decimal.NewFromInt(500)

// GrantTradingLicense flags the license and credits the one-time bonus.
func (s *Session) GrantTradingLicense() error {
	already := false
	s.store.Write(func(p domain.Profile) domain.Profile {
		if p.TradingLicense {
			already = true
			return p
		}
		p.TradingLicense = true
		return p
	})
	if already {
		return nil
	}
	if _, err := s.engine.Transact(tradingLicenseBonus, ledger.TxOptions{Source: "training", Label: "Trading License Bonus"}); err != nil {
		return err
	}
	s.notifier.Push("Trading License Granted! +500 Bonus", domain.NotifySuccess)
	return nil
}

// AddXP advances the XP counter; the level is derived, never stored.
func (s *Session) AddXP(amount int64) {
	s.store.Write(func(p domain.Profile) domain.Profile {
		p.XP += amount
		return p
	})
}

// CompleteLesson grants the lesson's XP reward at most once per lesson.
func (s *Session) CompleteLesson(id string, xpReward int64) {
	s.store.Write(func(p domain.Profile) domain.Profile {
		for _, done := range p.CompletedLessons {
			if done == id {
				return p
			}
		}
		p.CompletedLessons = append(p.CompletedLessons, id)
		p.XP += xpReward
		return p
	})
}

// LevelProgress reports the derived level state for the current XP counter.
func (s *Session) LevelProgress() derived.LevelProgress {
	return derived.Progress(s.store.Read().XP)
}
