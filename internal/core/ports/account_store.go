package ports

import (
	"context"

	"github.com/99minutos/session-security/internal/core/domain"
)

// AccountStore is the persistence boundary for account records.
// FindCredentials returns domain.ErrAccountNotFound when no record exists;
// any other error is a storage fault. CreateAccount returns
// domain.ErrAccountExists on duplicate identifiers.
type AccountStore interface {
	FindCredentials(ctx context.Context, identifier string) (*domain.CredentialRecord, error)
	CreateAccount(ctx context.Context, record *domain.CredentialRecord) (string, error)
}

// CredentialHasher is a one-way secret hasher.
type CredentialHasher interface {
	Verify(plain, hash string) bool
	Encode(plain string) (string, error)
}
