package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/phrazzld/scry-avatars/internal/store"
)

// PostgresProfileStore implements the store.ProfileStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProfileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProfileStore creates a new PostgreSQL implementation of the ProfileStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresProfileStore(db store.DBTX, logger *slog.Logger) *PostgresProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProfileStore{
		db:     db,
		logger: logger.With(slog.String("component", "profile_store")),
	}
}

// Ensure PostgresProfileStore implements the profile interfaces
var (
	_ store.ProfileStore  = (*PostgresProfileStore)(nil)
	_ store.ProfileReader = (*PostgresProfileStore)(nil)
)

// UpsertProfile implements store.ProfileStore.UpsertProfile.
// It inserts the profile or replaces the avatar fields of an existing row.
// Returns store.ErrInvalidEntity if the profile fails validation.
func (s *PostgresProfileStore) UpsertProfile(ctx context.Context, profile *domain.AvatarProfile) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if profile == nil {
		return fmt.Errorf("%w: profile is nil", store.ErrInvalidEntity)
	}
	if err := profile.Validate(); err != nil {
		log.Warn("profile validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("user_id", profile.UserID))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO user_profiles (user_id, avatar_url, avatar_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET avatar_url = EXCLUDED.avatar_url,
			avatar_updated_at = EXCLUDED.avatar_updated_at,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		query,
		profile.UserID,
		profile.AvatarURL,
		profile.AvatarUpdatedAt,
		now,
	)
	if err != nil {
		log.Error("failed to upsert profile",
			slog.String("error", err.Error()),
			slog.String("user_id", profile.UserID))
		return store.NewStoreError("profile", "upsert", "failed to upsert avatar", MapError(err))
	}

	log.Debug("profile avatar updated",
		slog.String("user_id", profile.UserID),
		slog.Time("avatar_updated_at", profile.AvatarUpdatedAt))
	return nil
}

// GetProfile returns the stored avatar pointer for userID.
// Returns store.ErrNotFound if the user has no profile row.
func (s *PostgresProfileStore) GetProfile(ctx context.Context, userID string) (*domain.AvatarProfile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, avatar_url, avatar_updated_at
		FROM user_profiles
		WHERE user_id = $1
	`
	var p domain.AvatarProfile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.AvatarURL, &p.AvatarUpdatedAt)
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("profile not found", slog.String("user_id", userID))
			return nil, fmt.Errorf("%w: profile for user %s", store.ErrNotFound, userID)
		}
		log.Error("failed to get profile",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
		return nil, MapError(err)
	}
	p.AvatarUpdatedAt = p.AvatarUpdatedAt.UTC()
	return &p, nil
}
