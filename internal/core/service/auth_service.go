package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
)

// AuthService verifies credentials against the account store. It never
// touches sessions.
type AuthService struct {
	store    ports.AccountStore
	hasher   ports.CredentialHasher
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(store ports.AccountStore, hasher ports.CredentialHasher, log zerolog.Logger) *AuthService {
	return &AuthService{
		store:    store,
		hasher:   hasher,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate returns the principal for identifier when secret verifies.
// Every failure is a *domain.AuthFailure.
func (s *AuthService) Authenticate(ctx context.Context, identifier, secret string) (*domain.Principal, error) {
	if identifier == "" || secret == "" {
		return nil, domain.NewAuthFailure(domain.FailureCredentialsAbsent, nil)
	}

	record, err := s.store.FindCredentials(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.NewAuthFailure(domain.FailureAccountNotFound, nil)
		}
		return nil, domain.NewAuthFailure(domain.FailureInternal, fmt.Errorf("find credentials: %w", err))
	}

	if !s.hasher.Verify(secret, record.SecretHash) {
		return nil, domain.NewAuthFailure(domain.FailureBadCredentials, nil)
	}

	return &domain.Principal{
		Identifier: record.Identifier,
		Role:       record.Role,
		IssuedAt:   s.now(),
	}, nil
}

// Register creates a new account with an encoded secret.
func (s *AuthService) Register(ctx context.Context, in ports.SignupInput) (*domain.CredentialRecord, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignup, err)
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignup, err)
	}

	hash, err := s.hasher.Encode(in.Secret)
	if err != nil {
		return nil, fmt.Errorf("encode secret: %w", err)
	}

	record := &domain.CredentialRecord{
		Identifier: in.Identifier,
		SecretHash: hash,
		Role:       role,
		CreatedAt:  s.now(),
	}
	id, err := s.store.CreateAccount(ctx, record)
	if err != nil {
		return nil, err
	}
	record.ID = id

	s.log.Info().Str("identifier", record.Identifier).Str("role", role.Tag()).Msg("account created")
	return record, nil
}

// BootstrapAdmin creates an admin account when none exists under identifier.
// It is idempotent.
func (s *AuthService) BootstrapAdmin(ctx context.Context, identifier, secret string) error {
	if identifier == "" || secret == "" {
		return nil
	}
	_, err := s.store.FindCredentials(ctx, identifier)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	_, err = s.Register(ctx, ports.SignupInput{Identifier: identifier, Secret: secret, Role: domain.RoleAdmin.Tag()})
	if err != nil && !errors.Is(err, domain.ErrAccountExists) {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}
