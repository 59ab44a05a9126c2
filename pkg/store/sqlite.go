package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// SQLiteStore keeps posted ids in a sqlite table, same contract as FileStore.
// Useful when the dedup state lives on a shared volume where full-file
// rewrites are expensive or racy.
type SQLiteStore struct {
	db        *sqlx.DB
	retention int
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS posted_ids (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		posted_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

// NewSQLiteStore opens (and initializes if needed) a sqlite-backed store
func NewSQLiteStore(ctx context.Context, dsn string, retention int) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db, retention: retention}, nil
}

// Load returns all posted ids in insertion order
func (s *SQLiteStore) Load(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, "SELECT posted_id FROM posted_ids ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%w: load posted ids: %v", ErrCorrupted, err)
	}
	return ids, nil
}

// Save inserts id and evicts rows beyond the retention window. Writes are
// retried with backoff on SQLITE_BUSY.
func (s *SQLiteStore) Save(ctx context.Context, id string, current []string) ([]string, error) {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	err := retrier.Do(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin tx: %w", err)}
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		if _, err := tx.ExecContext(ctx, "INSERT INTO posted_ids (posted_id) VALUES (?)", id); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("insert posted id: %w", err)}
		}

		evict := `
			DELETE FROM posted_ids
			WHERE seq NOT IN (SELECT seq FROM posted_ids ORDER BY seq DESC LIMIT ?)
		`
		if _, err := tx.ExecContext(ctx, evict, s.retention); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("evict old ids: %w", err)}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("commit: %w", err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return trim(append(current, id), s.retention), nil
}

// Close releases the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
