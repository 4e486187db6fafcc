package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tontine/internal/domain"
)

func openTemp(t *testing.T) *ActivityStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	entries := []domain.Activity{
		{ID: "a1", UserID: "u1", Kind: domain.ActivityLogin, Message: "Connexion", CreatedAt: base},
		{ID: "a2", UserID: "u1", Kind: domain.ActivityContribution, Message: "Cotisation", Detail: map[string]any{"amount": 5000.0}, CreatedAt: base.Add(time.Hour)},
		{ID: "a3", UserID: "u2", Kind: domain.ActivityLogin, Message: "other user", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a4", UserID: "u1", Kind: domain.ActivityTontineCreated, Message: "Création", CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, a := range entries {
		require.NoError(t, store.Append(ctx, a))
	}
	// Appending the same id twice is a no-op.
	require.NoError(t, store.Append(ctx, entries[0]))

	got, err := store.List(ctx, "u1", domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a4", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, 5000.0, got[1].Detail["amount"])
	assert.True(t, base.Add(time.Hour).Equal(got[1].CreatedAt))

	all, err := store.List(ctx, "u1", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	since := base.Add(30 * time.Minute)
	recent, err := store.List(ctx, "u1", domain.ListOpts{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	paged, err := store.List(ctx, "u1", domain.ListOpts{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "a1", paged[0].ID)
}

func TestListBeforeIsOldestFirst(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Append(ctx, domain.Activity{
			ID: id, UserID: "u1", Kind: domain.ActivityLogin, Message: id,
			CreatedAt: base.Add(time.Duration(2-i) * time.Hour),
		}))
	}

	got, err := store.ListBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestAppendDefaultsTimestamp(t *testing.T) {
	store := openTemp(t)
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.Append(context.Background(), domain.Activity{ID: "x", UserID: "u1", Kind: domain.ActivityLogin, Message: "m"}))
	got, err := store.List(context.Background(), "u1", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, fixed.Equal(got[0].CreatedAt))
}

func TestListQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, kind, message, detail, created_at FROM activity_log WHERE user_id = ?")).
		WithArgs("u1", 5).
		WillReturnError(errors.New("disk I/O error"))

	_, err = New(db).List(context.Background(), "u1", domain.ListOpts{Limit: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: list activity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO activity_log")).
		WithArgs("a1", "u1", "login", "m", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("readonly database"))

	err = New(db).Append(context.Background(), domain.Activity{ID: "a1", UserID: "u1", Kind: domain.ActivityLogin, Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: append activity login")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanRejectsCorruptDetail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "user_id", "kind", "message", "detail", "created_at"}).
		AddRow("a1", "u1", "login", "m", "{not json", int64(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, kind, message, detail, created_at FROM activity_log WHERE created_at < ?")).
		WillReturnRows(rows)

	_, err = New(db).ListBefore(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal activity detail")
}
