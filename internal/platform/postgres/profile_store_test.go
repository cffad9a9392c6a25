package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SQLSTATE codes mapped in pgSentinels.
const (
	uniqueViolationCode  = "23505"
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
)

// fakeDBTX records ExecContext calls and returns a canned error.
type fakeDBTX struct {
	query string
	args  []any
	calls int
	err   error
}

func (f *fakeDBTX) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls++
	f.query = query
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	return driverResult(1), nil
}

func (f *fakeDBTX) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestUpsertProfile(t *testing.T) {
	t.Parallel()

	db := &fakeDBTX{}
	_, log := logger.NewTestLogger()
	s := NewPostgresProfileStore(db, log)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	profile, err := domain.NewAvatarProfile("u1", "https://cdn.example.com/u1.webp?v=1", at)
	require.NoError(t, err)

	require.NoError(t, s.UpsertProfile(context.Background(), profile))

	assert.Equal(t, 1, db.calls)
	assert.Contains(t, db.query, "ON CONFLICT (user_id) DO UPDATE")
	require.Len(t, db.args, 4)
	assert.Equal(t, "u1", db.args[0])
	assert.Equal(t, "https://cdn.example.com/u1.webp?v=1", db.args[1])
	assert.Equal(t, at, db.args[2])
}

func TestUpsertProfile_Invalid(t *testing.T) {
	t.Parallel()

	db := &fakeDBTX{}
	s := NewPostgresProfileStore(db, nil)

	err := s.UpsertProfile(context.Background(), &domain.AvatarProfile{UserID: "u1"})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	err = s.UpsertProfile(context.Background(), nil)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	assert.Equal(t, 0, db.calls)
}

func TestUpsertProfile_DatabaseError(t *testing.T) {
	t.Parallel()

	db := &fakeDBTX{err: &pgconn.PgError{Code: checkViolationCode, ConstraintName: "user_profiles_user_id_not_blank"}}
	buf, log := logger.NewTestLogger()
	s := NewPostgresProfileStore(db, log)

	profile, err := domain.NewAvatarProfile("u1", "https://cdn.example.com/u1.webp", time.Now())
	require.NoError(t, err)

	err = s.UpsertProfile(context.Background(), profile)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	var storeErr *store.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "upsert", storeErr.Operation)
	assert.True(t, strings.Contains(buf.String(), "failed to upsert profile"))
}

func TestNewPostgresProfileStore_NilDB(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewPostgresProfileStore(nil, nil)
	})
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique", &pgconn.PgError{Code: uniqueViolationCode}, store.ErrDuplicate},
		{"check", &pgconn.PgError{Code: checkViolationCode}, store.ErrInvalidEntity},
		{"not null", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "avatar_url"}, store.ErrInvalidEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.err), tt.target)
		})
	}

	assert.NoError(t, MapError(nil))
	other := errors.New("connection reset")
	assert.Equal(t, other, MapError(other))
	assert.True(t, IsNotFoundError(MapError(sql.ErrNoRows)))
	assert.False(t, IsNotFoundError(other))
}

func TestMigrationNames(t *testing.T) {
	t.Parallel()

	names, err := MigrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_user_profiles.sql"}, names)
}
