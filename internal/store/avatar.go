package store

import (
	"context"

	"github.com/phrazzld/scry-avatars/internal/domain"
)

// ObjectStore defines the interface for avatar content storage.
type ObjectStore interface {
	// Upload writes data at path, overwriting any existing object.
	// Uploading the same path twice must succeed (upsert semantics).
	Upload(ctx context.Context, path string, data []byte, contentType string) error

	// PublicURL returns the URL clients use to read the object at path.
	PublicURL(path string) string
}

// ProfileStore defines the interface for the user profile avatar pointer.
type ProfileStore interface {
	// UpsertProfile creates or replaces the avatar fields of the profile
	// identified by profile.UserID.
	// Returns ErrInvalidEntity if the profile fails validation.
	UpsertProfile(ctx context.Context, profile *domain.AvatarProfile) error
}

// ProfileReader reads the stored avatar pointer.
type ProfileReader interface {
	// GetProfile returns the avatar profile for userID.
	// Returns ErrNotFound if the user has no stored avatar.
	GetProfile(ctx context.Context, userID string) (*domain.AvatarProfile, error)
}
