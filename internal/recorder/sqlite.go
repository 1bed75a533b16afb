package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var _ Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers do not block the daemon's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refreshes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			coins     INTEGER NOT NULL,
			stale     INTEGER NOT NULL,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refreshes_ts ON refreshes(timestamp)`,

		`CREATE TABLE IF NOT EXISTS valuations (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			user         TEXT NOT NULL,
			portfolio_id TEXT NOT NULL,
			value        REAL,
			cost         REAL,
			pnl          REAL,
			change_24h   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_valuations_portfolio ON valuations(user, portfolio_id, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRefresh(evt *RefreshEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := 0
	if evt.Stale {
		stale = 1
	}
	_, err := r.db.Exec(`INSERT INTO refreshes (timestamp, coins, stale, error) VALUES (?, ?, ?, ?)`,
		at(evt.At), evt.Coins, stale, evt.Error)
	if err != nil {
		return fmt.Errorf("insert refresh: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordValuation(v *Valuation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO valuations
		(timestamp, user, portfolio_id, value, cost, pnl, change_24h)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		at(v.At), v.User, v.PortfolioID, v.Value, v.Cost, v.PnL, v.Change24h)
	if err != nil {
		return fmt.Errorf("insert valuation: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Valuations(user, portfolioID string, limit int) ([]Valuation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.Query(`SELECT timestamp, value, cost, pnl, change_24h FROM valuations
		WHERE user = ? AND portfolio_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, user, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("query valuations: %w", err)
	}
	defer rows.Close()

	var out []Valuation
	for rows.Next() {
		v := Valuation{User: user, PortfolioID: portfolioID}
		var ts int64
		if err := rows.Scan(&ts, &v.Value, &v.Cost, &v.PnL, &v.Change24h); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		v.At = time.UnixMilli(ts)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] sqlite recorder closed")
	return r.db.Close()
}

func at(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
