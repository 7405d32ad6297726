package ports

import (
	"context"

	"github.com/99minutos/session-security/internal/core/domain"
)

// SignupInput is the DTO passed from the transport layer to Register.
type SignupInput struct {
	Identifier string `validate:"required,min=2,max=64"`
	Secret     string `validate:"required,min=4,max=72"`
	Role       string `validate:"required"`
}

type AuthService interface {
	Authenticate(ctx context.Context, identifier, secret string) (*domain.Principal, error)
	Register(ctx context.Context, in SignupInput) (*domain.CredentialRecord, error)
}
