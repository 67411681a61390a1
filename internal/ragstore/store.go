package ragstore

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	schemaRetryLimit = 5
	busyTimeoutMS    = 30000
)

// Store answers keyword-retrieval queries for a specialty, backed by a
// single-file SQLite database populated lazily from CSV files on disk.
type Store struct {
	db      *sql.DB
	dataDir string

	// ingestMu serializes lazy CSV ingestion so concurrent first queries
	// for the same specialty load the file exactly once.
	ingestMu sync.Mutex
}

// Open opens (creating if needed) the store at path. dataDir is the root of
// the per-department CSV tree used for lazy ingestion.
func Open(path, dataDir string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL allows multiple reader connections alongside one writer.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return &Store{db: db, dataDir: dataDir}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS keywords (
		specialty TEXT NOT NULL,
		rank_order INTEGER NOT NULL DEFAULT 0,
		keyword TEXT NOT NULL,
		search_volume INTEGER NOT NULL DEFAULT 0,
		duplicate_volume INTEGER NOT NULL DEFAULT 0,
		distinctiveness REAL NOT NULL DEFAULT 0,
		time_diff REAL NOT NULL DEFAULT 0,
		male_ratio REAL NOT NULL DEFAULT 0,
		female_ratio REAL NOT NULL DEFAULT 0,
		age_10s REAL NOT NULL DEFAULT 0,
		age_20s REAL NOT NULL DEFAULT 0,
		age_30s REAL NOT NULL DEFAULT 0,
		age_40s REAL NOT NULL DEFAULT 0,
		age_50s REAL NOT NULL DEFAULT 0,
		age_60s REAL NOT NULL DEFAULT 0,
		age_70s REAL NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		UNIQUE(specialty, keyword)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keywords_specialty ON keywords(specialty)`,
	`CREATE TABLE IF NOT EXISTS upload_history (
		id TEXT PRIMARY KEY,
		specialty TEXT NOT NULL,
		filename TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		uploaded_at TEXT NOT NULL
	)`,
}

// EnsureSchema creates the tables if they do not exist. Multiple workers may
// call this simultaneously on a fresh file: each sleeps a small randomized
// interval before the first DDL to spread contention, and a short retry loop
// absorbs transient "database is locked" failures.
func (s *Store) EnsureSchema(ctx context.Context) error {
	jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
	}

	var lastErr error
	for attempt := 1; attempt <= schemaRetryLimit; attempt++ {
		lastErr = s.applySchema(ctx)
		if lastErr == nil {
			return nil
		}
		if !isLockedError(lastErr) {
			return lastErr
		}

		backoff := 500*time.Millisecond + time.Duration(rand.Int63n(int64(2500*time.Millisecond)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("schema creation failed after %d attempts: %w", schemaRetryLimit, lastErr)
}

func (s *Store) applySchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

func isLockedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
