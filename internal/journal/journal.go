// Package journal persists per-address migration outcomes in a local
// SQLite database so repeated runs can skip contracts that already
// migrated successfully.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no journal entry exists for an address
var ErrNotFound = errors.New("not found")

// Entry is one recorded migration attempt
type Entry struct {
	ID        string
	RunID     string
	Address   string
	SourceURL string
	TargetURL string
	Outcome   string
	Reason    string
	GUID      string
	CreatedAt time.Time
}

// Journal is a sqlite-backed migration log
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the journal at path
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	// WAL keeps concurrent pipeline goroutines from blocking each other
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	j := &Journal{db: db, logger: logger}
	if err := j.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the journal database
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS migrations (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		address TEXT NOT NULL,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		guid TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_migrations_address ON migrations(address, target_url);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating journal schema: %w", err)
	}
	return nil
}

// Record appends one migration attempt. Journal write failures must never
// fail the migration itself; callers log and continue.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO migrations (id, run_id, address, source_url, target_url, outcome, reason, guid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.Address, e.SourceURL, e.TargetURL, e.Outcome, e.Reason, e.GUID,
	)
	if err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return nil
}

// LastOutcome returns the most recent recorded outcome for an address and
// target explorer, or ErrNotFound.
func (j *Journal) LastOutcome(ctx context.Context, address, targetURL string) (string, error) {
	var outcome string
	err := j.db.QueryRowContext(ctx, `
		SELECT outcome FROM migrations
		WHERE address = ? AND target_url = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`,
		address, targetURL,
	).Scan(&outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying journal: %w", err)
	}
	return outcome, nil
}

// List returns the most recent entries, newest first
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, address, source_url, target_url, outcome,
		       COALESCE(reason, ''), COALESCE(guid, ''), created_at
		FROM migrations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Address, &e.SourceURL, &e.TargetURL,
			&e.Outcome, &e.Reason, &e.GUID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every journal entry
func (j *Journal) Clear(ctx context.Context) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM migrations`)
	if err != nil {
		return 0, fmt.Errorf("clearing journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	j.logger.Info("journal cleared", zap.Int64("entries", n))
	return n, nil
}
