package ports

import (
	"context"

	"github.com/99minutos/session-security/internal/core/domain"
)

// SessionRegistry tracks live sessions. Implementations must keep at most one
// live handle per identifier: Register evicts any previous handle for the same
// identifier atomically with storing the new one.
type SessionRegistry interface {
	Register(ctx context.Context, principal domain.Principal) (*domain.SessionHandle, error)
	// Resolve returns domain.ErrSessionNotFound for unknown, expired, or
	// evicted sessions.
	Resolve(ctx context.Context, sessionID string) (*domain.SessionHandle, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForIdentifier(ctx context.Context, identifier string) (int, error)
}

// DisplaceFunc is notified when a login evicts an older session.
type DisplaceFunc func(displaced domain.SessionHandle)
