package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// ActivityStore implements domain.ActivityStore using PostgreSQL.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates a new ActivityStore backed by the given pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Append records one journal entry. The detail map is stored as JSONB.
func (s *ActivityStore) Append(ctx context.Context, a domain.Activity) error {
	var detail []byte
	if len(a.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(a.Detail); err != nil {
			return fmt.Errorf("postgres: marshal activity detail: %w", err)
		}
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	const query = `INSERT INTO activity_log (id, user_id, kind, message, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, a.ID, a.UserID, string(a.Kind), a.Message, detail, created); err != nil {
		return fmt.Errorf("postgres: append activity %s: %w", a.Kind, err)
	}
	return nil
}

// List returns a user's entries, newest first, with pagination and optional
// time filtering.
func (s *ActivityStore) List(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Activity, error) {
	query, args := listQuery(userID, opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity: %w", err)
	}
	return scanActivities(rows)
}

// ListBefore returns every entry older than before, oldest first.
func (s *ActivityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Activity, error) {
	const query = `SELECT id, user_id, kind, message, detail, created_at
		FROM activity_log WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity before %s: %w", before.Format(time.RFC3339), err)
	}
	return scanActivities(rows)
}

func listQuery(userID string, opts domain.ListOpts) (string, []any) {
	query := `SELECT id, user_id, kind, message, detail, created_at FROM activity_log WHERE user_id = $1`
	args := []any{userID}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func scanActivities(rows pgx.Rows) ([]domain.Activity, error) {
	defer rows.Close()

	entries := []domain.Activity{}
	for rows.Next() {
		var (
			a      domain.Activity
			kind   string
			detail []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &a.Message, &detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		a.Kind = domain.ActivityKind(kind)
		if detail != nil {
			if err := json.Unmarshal(detail, &a.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal activity detail: %w", err)
			}
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: activity rows: %w", err)
	}
	return entries, nil
}

var _ domain.ActivityStore = (*ActivityStore)(nil)
