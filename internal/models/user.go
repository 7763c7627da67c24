package models

import (
	"time"
)

// Profile is the directory record of an account
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	Bio            *string   `json:"bio,omitempty"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostsCount     int       `json:"posts_count"`
	IsVerified     bool      `json:"is_verified"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProfileUpdate carries the user-editable profile fields; nil means unchanged
type ProfileUpdate struct {
	Username  *string
	Bio       *string
	AvatarURL *string
}

// IsEmpty reports whether the update changes nothing
func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.Bio == nil && u.AvatarURL == nil
}

// Credential is the identity provider's record of an account
type Credential struct {
	AccountID     string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProviderSession is what the identity provider reports for an active session
type ProviderSession struct {
	AccountID string
	Email     string
	ExpiresAt time.Time
}
