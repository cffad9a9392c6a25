//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/platform/postgres"
	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/phrazzld/scry-avatars/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileStore_UpsertAndGet(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		_, log := logger.NewTestLogger()
		s := postgres.NewPostgresProfileStore(tx, log)
		userID := "it-" + uuid.NewString()

		_, err := s.GetProfile(ctx, userID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		first := time.Now().UTC().Truncate(time.Microsecond)
		p1, err := domain.NewAvatarProfile(userID, "https://cdn.example.com/a.webp?v=1", first)
		require.NoError(t, err)
		require.NoError(t, s.UpsertProfile(ctx, p1))

		second := first.Add(time.Minute)
		p2, err := domain.NewAvatarProfile(userID, "https://cdn.example.com/a.webp?v=2", second)
		require.NoError(t, err)
		require.NoError(t, s.UpsertProfile(ctx, p2))

		got, err := s.GetProfile(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, p2.AvatarURL, got.AvatarURL)
		assert.True(t, second.Equal(got.AvatarUpdatedAt))
	})
}

func TestProfileStore_CheckConstraint(t *testing.T) {
	t.Parallel()
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		_, err := tx.ExecContext(context.Background(),
			`INSERT INTO user_profiles (user_id, avatar_url, avatar_updated_at, updated_at)
			 VALUES ('   ', $1, now(), now())`, "https://cdn.example.com/a.webp")
		require.Error(t, err)
		assert.ErrorIs(t, postgres.MapError(err), store.ErrInvalidEntity)
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testdb.Open(t)
	_, log := logger.NewTestLogger()

	require.NoError(t, postgres.Migrate(context.Background(), db, log))
}
