package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99minutos/session-security/internal/core/domain"
)

const uniqueViolation = "23505"

// Schema is the DDL expected by AccountStore.
const Schema = `CREATE TABLE IF NOT EXISTS accounts (
	id          BIGSERIAL PRIMARY KEY,
	identifier  TEXT NOT NULL UNIQUE,
	secret_hash TEXT NOT NULL,
	role        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// AccountStore implements ports.AccountStore using pgxpool.
type AccountStore struct {
	db *pgxpool.Pool
}

func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

// Migrate creates the accounts table when missing.
func (s *AccountStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}
	return nil
}

func (s *AccountStore) FindCredentials(ctx context.Context, identifier string) (*domain.CredentialRecord, error) {
	const q = `SELECT id, identifier, secret_hash, role, created_at FROM accounts WHERE identifier=$1`

	var (
		rec  domain.CredentialRecord
		id   int64
		role string
	)
	err := s.db.QueryRow(ctx, q, identifier).Scan(&id, &rec.Identifier, &rec.SecretHash, &role, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	rec.ID = strconv.FormatInt(id, 10)
	if rec.Role, err = domain.ParseRole(role); err != nil {
		return nil, fmt.Errorf("account %s: %w", rec.Identifier, err)
	}
	return &rec, nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, record *domain.CredentialRecord) (string, error) {
	const q = `INSERT INTO accounts (identifier, secret_hash, role, created_at) VALUES ($1,$2,$3,$4) RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, q, record.Identifier, record.SecretHash, record.Role.Tag(), record.CreatedAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrAccountExists
		}
		return "", fmt.Errorf("insert account: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
