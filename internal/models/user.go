package models

import (
	"time"
)

// UserRecord is a registered dashboard user, keyed by email. JSON field names
// match the browser dashboard's localStorage layout so existing data imports
// without translation.
type UserRecord struct {
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin"`
	ImportedAt   *time.Time `json:"importedAt,omitempty"`
}

// Projection returns the minimal user view embedded in sessions.
func (u UserRecord) Projection() UserProjection {
	return UserProjection{
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

type UserProjection struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionRecord is a login session. A nil ExpiresAt marks a remembered
// session that never expires.
type SessionRecord struct {
	Token     string         `json:"token"`
	User      UserProjection `json:"user"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt *time.Time     `json:"expiresAt"`
}

func (s SessionRecord) Remembered() bool { return s.ExpiresAt == nil }

// Expired reports whether now is past the session expiry.
func (s SessionRecord) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// GuestSession is a credential-less session that only lives in the
// ephemeral tier.
type GuestSession struct {
	IsGuest     bool      `json:"isGuest"`
	DisplayName string    `json:"displayName"`
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserExport is the portable export document.
type UserExport struct {
	Version    string       `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	User       ExportedUser `json:"user"`
}

type ExportedUser struct {
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash string    `json:"passwordHash,omitempty"`
}
