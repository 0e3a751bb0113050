package sqlite

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintwitch/sessiond/internal/domain"
)

// Store implements domain.ProfileStore on SQLite. It keeps the authoritative
// snapshot in memory and persists every write; storage-medium errors are
// logged and swallowed since the store is a best-effort cache, not the source
// of truth. All reads and writes go through a single serialized writer.
type Store struct {
	log zerolog.Logger

	mu       sync.Mutex
	db       *sql.DB // nil when storage is unavailable
	current  domain.Profile
	watchers []func(domain.Profile)
}

// Open opens the store at dbPath. Open never fails: if the database cannot
// be opened or read, the store degrades to its in-memory initial profile.
func Open(dbPath string, log zerolog.Logger) *Store {
	s := &Store{log: log, current: domain.NewProfile()}

	db, err := openDB(dbPath)
	if err != nil {
		log.Warn().Err(err).Msg("profile db unavailable, running in-memory")
		return s
	}
	s.db = db

	p, ok, err := s.load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load stored profile, starting fresh")
		return s
	}
	if ok {
		s.current = p
	}
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Read returns the current profile snapshot.
func (s *Store) Read() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Write applies the mutator under the serialized writer, persists the result,
// and notifies watchers with the new snapshot.
func (s *Store) Write(m domain.ProfileMutator) domain.Profile {
	s.mu.Lock()
	next := m(s.current.Clone())
	s.current = next
	if err := s.persist(next); err != nil {
		s.log.Warn().Err(err).Msg("profile persist failed, in-memory copy kept")
	}
	snapshot := next.Clone()
	watchers := append([]func(domain.Profile){}, s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
	return snapshot
}

// Watch registers a callback invoked after every successful Write.
func (s *Store) Watch(fn func(domain.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Store) persist(p domain.Profile) error {
	if s.db == nil {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	dailyJSON, err := json.Marshal(p.DailyActions)
	if err != nil {
		return err
	}
	progressJSON, err := json.Marshal(p.CareerProgress)
	if err != nil {
		return err
	}
	toolsJSON, err := json.Marshal(p.UnlockedTools)
	if err != nil {
		return err
	}
	articlesJSON, err := json.Marshal(p.ReadArticles)
	if err != nil {
		return err
	}
	investmentsJSON, err := json.Marshal(p.Investments)
	if err != nil {
		return err
	}
	habitsJSON, err := json.Marshal(p.HabitStats)
	if err != nil {
		return err
	}
	lessonsJSON, err := json.Marshal(p.CompletedLessons)
	if err != nil {
		return err
	}

	boolInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO profile
		(id, username, balance, streak, last_streak_completion, career_level,
		 mode, trading_license, expenses_blocked, xp, last_login,
		 daily_actions, career_progress, unlocked_tools, read_articles,
		 investments, habit_stats, completed_lessons, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Username, p.Balance.String(), p.Streak, p.LastStreakCompletion, p.CareerLevel,
		string(p.Mode), boolInt(p.TradingLicense), boolInt(p.ExpensesBlocked), p.XP,
		p.LastLogin.UTC().Format(time.RFC3339Nano),
		string(dailyJSON), string(progressJSON), string(toolsJSON), string(articlesJSON),
		string(investmentsJSON), string(habitsJSON), string(lessonsJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM entries"); err != nil {
		return err
	}
	for i, e := range p.Transactions {
		_, err = tx.Exec(`INSERT INTO entries
			(position, entry_id, ts, amount, balance_after, source, label)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.Amount.String(), e.BalanceAfter.String(), e.Source, e.Label,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) load() (domain.Profile, bool, error) {
	p := domain.NewProfile()

	var (
		balance, mode, lastLogin                      string
		daily, progress, tools, articles              string
		investments, habits, lessons                  string
		tradingLicense, expensesBlocked               int
	)
	row := s.db.QueryRow(`SELECT username, balance, streak, last_streak_completion,
		career_level, mode, trading_license, expenses_blocked, xp, last_login,
		daily_actions, career_progress, unlocked_tools, read_articles,
		investments, habit_stats, completed_lessons
		FROM profile WHERE id = 1`)
	err := row.Scan(&p.Username, &balance, &p.Streak, &p.LastStreakCompletion,
		&p.CareerLevel, &mode, &tradingLicense, &expensesBlocked, &p.XP, &lastLogin,
		&daily, &progress, &tools, &articles, &investments, &habits, &lessons)
	if err == sql.ErrNoRows {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}

	if p.Balance, err = decimal.NewFromString(balance); err != nil {
		return p, false, err
	}
	p.Mode = domain.Mode(mode)
	p.TradingLicense = tradingLicense != 0
	p.ExpensesBlocked = expensesBlocked != 0
	if t, err := time.Parse(time.RFC3339Nano, lastLogin); err == nil {
		p.LastLogin = t
	}
	if err = json.Unmarshal([]byte(daily), &p.DailyActions); err != nil {
		return p, false, err
	}
	if err = json.Unmarshal([]byte(progress), &p.CareerProgress); err != nil {
		return p, false, err
	}
	if err = json.Unmarshal([]byte(tools), &p.UnlockedTools); err != nil {
		return p, false, err
	}
	if err = json.Unmarshal([]byte(articles), &p.ReadArticles); err != nil {
		return p, false, err
	}
	if err = json.Unmarshal([]byte(investments), &p.Investments); err != nil {
		return p, false, err
	}
	if err = json.Unmarshal([]byte(habits), &p.HabitStats); err != nil {
		return p, false, err
	}
	if err = json.Unmarshal([]byte(lessons), &p.CompletedLessons); err != nil {
		return p, false, err
	}

	rows, err := s.db.Query(`SELECT entry_id, ts, amount, balance_after, source, label
		FROM entries ORDER BY position`)
	if err != nil {
		return p, false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e domain.Entry
		var ts, amount, after string
		if err := rows.Scan(&e.ID, &ts, &amount, &after, &e.Source, &e.Label); err != nil {
			return p, false, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return p, false, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return p, false, err
		}
		if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return p, false, err
		}
		p.Transactions = append(p.Transactions, e)
	}
	return p, true, rows.Err()
}
