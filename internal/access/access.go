// Package access implements the auxiliary access-log database.
//
// The log lives in its own SQLite file, separate from the catalog, so
// that a read-mostly catalog can stay on slow shared storage while access
// records land somewhere writable. The catalog's stats table names the
// log's path; when no log is registered, logging is a soft no-op.
package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS accesses (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	date      TEXT NOT NULL,
	user      TEXT NOT NULL,
	-- plain integer reference: the ncfiles table lives in a different
	-- database file, so a foreign key cannot reach it
	ncfile_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_accesses_ncfile_id ON accesses(ncfile_id);
`

// Log records file accesses into a dedicated database.
type Log struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) an access-log database.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open access log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create access log schema: %w", err)
	}
	return &Log{db: db, path: path}, nil
}

// ForStore opens the access log registered in the catalog's stats table.
// Returns (nil, nil) when the catalog has no access log configured.
func ForStore(ctx context.Context, store *catalog.Store) (*Log, error) {
	path, err := store.StatsDBPath(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	return Open(path)
}

// Record logs one access by user to each of the given file rows. A nil
// *Log is a no-op, so callers need not branch on whether a log is
// configured.
func (l *Log) Record(ctx context.Context, user string, fileIDs []int64) error {
	if l == nil || len(fileIDs) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin access log transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO accesses (date, user, ncfile_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare access insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(catalog.TimeFormat)
	for _, id := range fileIDs {
		if _, err := stmt.ExecContext(ctx, now, user, id); err != nil {
			return fmt.Errorf("insert access: %w", err)
		}
	}

	return tx.Commit()
}

// CountForFile returns the number of recorded accesses for one file row.
func (l *Log) CountForFile(ctx context.Context, fileID int64) (int64, error) {
	if l == nil {
		return 0, nil
	}
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accesses WHERE ncfile_id = ?`, fileID).Scan(&n)
	return n, err
}

// CountForFiles returns the total number of recorded accesses across the
// given file rows.
func (l *Log) CountForFiles(ctx context.Context, fileIDs []int64) (int64, error) {
	if l == nil {
		return 0, nil
	}
	var total int64
	for _, id := range fileIDs {
		n, err := l.CountForFile(ctx, id)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Close closes the log database.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}
