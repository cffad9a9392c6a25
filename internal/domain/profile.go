package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Profile validation errors
var (
	ErrEmptyUserID        = errors.New("user ID cannot be empty")
	ErrEmptyAvatarURL     = errors.New("avatar URL cannot be empty")
	ErrInvalidAvatarURL   = errors.New("avatar URL must be an absolute URL")
	ErrZeroAvatarUpdateAt = errors.New("avatar update time cannot be zero")
)

// AvatarProfile is the avatar pointer stored on a user's profile.
// It is keyed uniquely by UserID.
type AvatarProfile struct {
	UserID          string    `json:"user_id"`
	AvatarURL       string    `json:"avatar_url"`
	AvatarUpdatedAt time.Time `json:"avatar_updated_at"`
}

// NewAvatarProfile creates a profile update stamped with the given time.
// Returns an error if validation fails.
func NewAvatarProfile(userID, avatarURL string, updatedAt time.Time) (*AvatarProfile, error) {
	p := &AvatarProfile{
		UserID:          userID,
		AvatarURL:       avatarURL,
		AvatarUpdatedAt: updatedAt.UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the profile update is complete.
func (p *AvatarProfile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUserID
	}
	if p.AvatarURL == "" {
		return ErrEmptyAvatarURL
	}
	u, err := url.Parse(p.AvatarURL)
	if err != nil || !u.IsAbs() {
		return ErrInvalidAvatarURL
	}
	if p.AvatarUpdatedAt.IsZero() {
		return ErrZeroAvatarUpdateAt
	}
	return nil
}
