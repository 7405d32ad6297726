package domain

import (
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionHandle binds an opaque session ID to a principal. At most one live
// handle exists per identifier.
type SessionHandle struct {
	ID         string    `json:"-"`
	Identifier string    `json:"identifier"`
	Principal  Principal `json:"principal"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// SessionExpiry bounds how long a handle stays live. Zero values disable the
// corresponding check.
type SessionExpiry struct {
	IdleTimeout time.Duration
	MaxLifetime time.Duration
}

// Expired reports whether h is no longer usable at now.
func (e SessionExpiry) Expired(h *SessionHandle, now time.Time) bool {
	if e.MaxLifetime > 0 && now.Sub(h.CreatedAt) > e.MaxLifetime {
		return true
	}
	if e.IdleTimeout > 0 && now.Sub(h.LastSeenAt) > e.IdleTimeout {
		return true
	}
	return false
}
