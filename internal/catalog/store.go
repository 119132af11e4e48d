package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/angus-g/cosima-cookbook/internal/cerr"
)

// EnvDB names the environment variable overriding the database path.
const EnvDB = "COSIMA_COOKBOOK_DB"

// DefaultDBPath returns the catalog database path: the COSIMA_COOKBOOK_DB
// environment variable if set, otherwise ~/.cookbook/catalog.db.
func DefaultDBPath() string {
	if p := os.Getenv(EnvDB); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cookbook", "catalog.db")
	}
	return filepath.Join(home, ".cookbook", "catalog.db")
}

// Store is the SQLite-backed catalog.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the catalog database at path and
// verifies its schema version.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerr.Wrap(cerr.CodeDBOpen, err)
	}

	dsn := path + "?_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeDBOpen, err)
	}

	// The merge phase is single-writer; a single connection keeps
	// transaction state and PRAGMAs on one handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cerr.Wrap(cerr.CodeDBOpen, fmt.Errorf("%s: %w", pragma, err))
		}
	}

	if err := checkVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, cerr.Wrap(cerr.CodeDBOpen, fmt.Errorf("create schema: %w", err))
	}

	return &Store{db: db, path: path}, nil
}

// checkVersion stamps a fresh database with DBVersion and rejects any
// existing database stamped with a different version.
func checkVersion(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return cerr.Wrap(cerr.CodeDBOpen, err)
	}

	switch version {
	case 0:
		// freshly created
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", DBVersion)); err != nil {
			return cerr.Wrap(cerr.CodeDBOpen, err)
		}
		return nil
	case DBVersion:
		return nil
	default:
		return cerr.Newf(cerr.CodeDBVersion,
			"incompatible database version: expected %d, got %d", DBVersion, version)
	}
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Begin starts a catalog transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeReconcileCommit, err)
	}
	return &Tx{tx: tx}, nil
}

// View runs fn inside a transaction that is always rolled back. Intended
// for read-only access.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

// StatsDBPath returns the configured access-log database path, or "" when
// none is registered.
func (s *Store) StatsDBPath(ctx context.Context) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM stats LIMIT 1`).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup stats database: %w", err)
	}
	return path, nil
}

// SetStatsDBPath registers (or replaces) the access-log database path.
func (s *Store) SetStatsDBPath(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stats`); err != nil {
		return fmt.Errorf("clear stats pointer: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO stats (path) VALUES (?)`, path); err != nil {
		return fmt.Errorf("set stats pointer: %w", err)
	}
	return nil
}
