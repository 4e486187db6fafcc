// Package sqlite implements the activity journal on a local SQLite file for
// single-user deployments. It uses the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/tontine/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS activity_log (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    kind       TEXT NOT NULL,
    message    TEXT NOT NULL,
    detail     TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_log_user_created ON activity_log(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_activity_log_created ON activity_log(created_at);
`

var _ domain.ActivityStore = (*ActivityStore)(nil)

// ActivityStore implements domain.ActivityStore using SQLite. Timestamps are
// stored as Unix microseconds.
type ActivityStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the parent directory of path, opens the database and applies
// the schema.
func Open(path string) (*ActivityStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY between goroutines of one process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return New(db), nil
}

// New wraps an already prepared database.
func New(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db, now: time.Now}
}

// Close closes the database connection.
func (s *ActivityStore) Close() error {
	return s.db.Close()
}

func (s *ActivityStore) Append(ctx context.Context, a domain.Activity) error {
	var detail sql.NullString
	if len(a.Detail) > 0 {
		b, err := json.Marshal(a.Detail)
		if err != nil {
			return fmt.Errorf("sqlite: marshal activity detail: %w", err)
		}
		detail = sql.NullString{String: string(b), Valid: true}
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity_log (id, user_id, kind, message, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Kind), a.Message, detail, created.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append activity %s: %w", a.Kind, err)
	}
	return nil
}

func (s *ActivityStore) List(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Activity, error) {
	query := `SELECT id, user_id, kind, message, detail, created_at FROM activity_log WHERE user_id = ?`
	args := []any{userID}
	if opts.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, opts.Since.UnixMicro())
	}
	if opts.Until != nil {
		query += ` AND created_at <= ?`
		args = append(args, opts.Until.UnixMicro())
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list activity: %w", err)
	}
	return scanActivities(rows)
}

func (s *ActivityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, message, detail, created_at FROM activity_log WHERE created_at < ? ORDER BY created_at ASC`,
		before.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list activity before: %w", err)
	}
	return scanActivities(rows)
}

func scanActivities(rows *sql.Rows) ([]domain.Activity, error) {
	defer rows.Close()

	entries := []domain.Activity{}
	for rows.Next() {
		var (
			a       domain.Activity
			kind    string
			detail  sql.NullString
			created int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &a.Message, &detail, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan activity: %w", err)
		}
		a.Kind = domain.ActivityKind(kind)
		a.CreatedAt = time.UnixMicro(created).UTC()
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &a.Detail); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal activity detail: %w", err)
			}
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: activity rows: %w", err)
	}
	return entries, nil
}
