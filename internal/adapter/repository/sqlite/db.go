// Package sqlite provides the durable, process-local profile store.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS profile (
    id                     INTEGER PRIMARY KEY CHECK (id = 1),
    username               TEXT NOT NULL,
    balance                TEXT NOT NULL,
    streak                 INTEGER NOT NULL,
    last_streak_completion TEXT NOT NULL,
    career_level           INTEGER NOT NULL,
    mode                   TEXT NOT NULL,
    trading_license        INTEGER NOT NULL,
    expenses_blocked       INTEGER NOT NULL,
    xp                     INTEGER NOT NULL,
    last_login             TEXT NOT NULL,
    daily_actions          TEXT NOT NULL,
    career_progress        TEXT NOT NULL,
    unlocked_tools         TEXT NOT NULL,
    read_articles          TEXT NOT NULL,
    investments            TEXT NOT NULL,
    habit_stats            TEXT NOT NULL,
    completed_lessons      TEXT NOT NULL,
    updated_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
    position      INTEGER PRIMARY KEY,
    entry_id      TEXT NOT NULL,
    ts            TEXT NOT NULL,
    amount        TEXT NOT NULL,
    balance_after TEXT NOT NULL,
    source        TEXT NOT NULL,
    label         TEXT NOT NULL
);
`

// openDB opens or creates the profile database at the given path.
func openDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("opening profile db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}
