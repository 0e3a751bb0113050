//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintwitch/sessiond/internal/adapter/remote"
	"github.com/fintwitch/sessiond/internal/adapter/repository/sqlite"
	"github.com/fintwitch/sessiond/internal/domain"
	"github.com/fintwitch/sessiond/internal/logger"
	"github.com/fintwitch/sessiond/internal/notify"
	"github.com/fintwitch/sessiond/internal/usecase/ledger"
	"github.com/fintwitch/sessiond/internal/usecase/reconcile"
	"github.com/fintwitch/sessiond/internal/usecase/session"
)

// collaborators is one HTTP server standing in for every external service:
// auth, profile store, analytics ingest, budget ledger, and event source.
type collaborators struct {
	mu       sync.Mutex
	profiles map[string]json.RawMessage
	patches  map[string]int
	ingested int
	events   []domain.SimulatedEvent

	srv *httptest.Server
}

func newCollaborators(t *testing.T) *collaborators {
	t.Helper()
	c := &collaborators{
		profiles: map[string]json.RawMessage{},
		patches:  map[string]int{},
	}
	c.srv = httptest.NewServer(http.HandlerFunc(c.handle))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *collaborators) handle(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/auth/"):
		var req struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uid": "uid-" + req.Email, "email": req.Email,
		})

	case strings.HasPrefix(r.URL.Path, "/users/"):
		uid := strings.TrimPrefix(r.URL.Path, "/users/")
		switch r.Method {
		case http.MethodGet:
			raw, ok := c.profiles[uid]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(raw)
		case http.MethodPut:
			var raw json.RawMessage
			_ = json.NewDecoder(r.Body).Decode(&raw)
			c.profiles[uid] = raw
		case http.MethodPatch:
			if _, ok := c.profiles[uid]; !ok {
				http.NotFound(w, r)
				return
			}
			c.patches[uid]++
		}

	case r.URL.Path == "/ingest":
		c.ingested++

	case strings.HasPrefix(r.URL.Path, "/budget/"):
		// Status probe and writes all succeed.

	case r.URL.Path == "/events":
		events := c.events
		c.events = nil
		_ = json.NewEncoder(w).Encode(events)

	default:
		http.NotFound(w, r)
	}
}

func (c *collaborators) patchCount(uid string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patches[uid]
}

func (c *collaborators) queueEvent(ev domain.SimulatedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collaborators) record(t *testing.T, uid string) domain.Profile {
	t.Helper()
	c.mu.Lock()
	raw, ok := c.profiles[uid]
	c.mu.Unlock()
	require.True(t, ok, "remote record exists for %s", uid)
	var p domain.Profile
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func newSession(t *testing.T, c *collaborators, dbPath string, pollInterval time.Duration) *session.Session {
	t.Helper()
	store := sqlite.Open(dbPath, logger.Nop())
	t.Cleanup(func() { _ = store.Close() })

	svc := session.New(session.Deps{
		Store:     store,
		Auth:      remote.NewAuthClient(c.srv.URL),
		Remote:    remote.NewProfileClient(c.srv.URL),
		Analytics: remote.NewAnalyticsClient(c.srv.URL),
		Budget:    remote.NewBudgetClient(c.srv.URL),
		Events:    remote.NewEventsClient(c.srv.URL),
		Notifier:  &notify.Memory{},
		Log:       logger.Nop(),
	}, session.Config{
		BlockThreshold:    decimal.NewFromInt(100),
		RecoveryThreshold: decimal.NewFromInt(800),
		PollInterval:      pollInterval,
		Reconcile: reconcile.Options{
			SyncDebounce: 50 * time.Millisecond,
			SignupGrace:  50 * time.Millisecond,
		},
	})
	svc.Start(context.Background())
	t.Cleanup(svc.Close)
	return svc
}

func TestEndToEnd_SignupTransactSyncAndRestart(t *testing.T) {
	c := newCollaborators(t)
	dbPath := filepath.Join(t.TempDir(), "profile.db")

	svc := newSession(t, c, dbPath, time.Hour)
	require.NoError(t, svc.SignUp(context.Background(), "jo@example.com", "pw", "trader_jo"))

	created := c.record(t, "uid-jo@example.com")
	assert.Equal(t, "trader_jo", created.Username)
	assert.True(t, domain.DefaultInitialBalance.Equal(created.Balance))

	time.Sleep(100 * time.Millisecond) // let the signup grace lapse

	_, err := svc.Transact(decimal.RequireFromString("-150.555"), ledger.TxOptions{Label: "Food"})
	require.NoError(t, err)

	p := svc.Profile()
	assert.True(t, decimal.RequireFromString("9849.44").Equal(p.Balance), "got %s", p.Balance)
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "Expense (Food)", p.Transactions[0].Label)

	// The debounced push reaches the remote store.
	assert.Eventually(t, func() bool { return c.patchCount("uid-jo@example.com") >= 1 },
		3*time.Second, 25*time.Millisecond)

	svc.Close()

	// A fresh process over the same database resumes the exact state.
	reopened := sqlite.Open(dbPath, logger.Nop())
	defer func() { _ = reopened.Close() }()
	resumed := reopened.Read()
	assert.Equal(t, "trader_jo", resumed.Username)
	assert.True(t, p.Balance.Equal(resumed.Balance))
	require.Len(t, resumed.Transactions, 1)
	assert.Equal(t, p.Transactions[0].ID, resumed.Transactions[0].ID)
}

func TestEndToEnd_ReturningUserMergesRemoteRecord(t *testing.T) {
	c := newCollaborators(t)
	existing := domain.NewProfile()
	existing.Username = "returning_jo"
	existing.Balance = decimal.NewFromInt(4200)
	existing.Streak = 7
	raw, err := json.Marshal(existing)
	require.NoError(t, err)
	c.mu.Lock()
	c.profiles["uid-jo@example.com"] = raw
	c.mu.Unlock()

	svc := newSession(t, c, filepath.Join(t.TempDir(), "profile.db"), time.Hour)
	require.NoError(t, svc.SignIn(context.Background(), "jo@example.com", "pw"))

	require.Eventually(t, func() bool {
		return svc.Profile().Username == "returning_jo"
	}, 3*time.Second, 25*time.Millisecond)
	p := svc.Profile()
	assert.True(t, decimal.NewFromInt(4200).Equal(p.Balance))
	assert.Equal(t, 7, p.Streak)
}

func TestEndToEnd_SimulatedEventFlowsThroughLedger(t *testing.T) {
	c := newCollaborators(t)
	svc := newSession(t, c, filepath.Join(t.TempDir(), "profile.db"), 50*time.Millisecond)
	require.NoError(t, svc.SignUp(context.Background(), "jo@example.com", "pw", "trader_jo"))

	c.queueEvent(domain.SimulatedEvent{
		Type:     domain.EventExpense,
		Category: "Car Repair",
		Amount:   decimal.RequireFromString("75.50"),
	})

	want := domain.DefaultInitialBalance.Sub(decimal.RequireFromString("75.50"))
	require.Eventually(t, func() bool {
		return want.Equal(svc.Profile().Balance)
	}, 3*time.Second, 25*time.Millisecond)

	p := svc.Profile()
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "Expense (Car Repair)", p.Transactions[0].Label)
}
