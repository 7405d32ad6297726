package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/99minutos/session-security/internal/core/domain"
)

// MemoryAccountStore is an AccountStore kept in process memory. It backs
// ACCOUNT_BACKEND=memory and tests.
type MemoryAccountStore struct {
	mu      sync.RWMutex
	records map[string]domain.CredentialRecord
	seq     int
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{records: make(map[string]domain.CredentialRecord)}
}

func (s *MemoryAccountStore) FindCredentials(_ context.Context, identifier string) (*domain.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[identifier]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &rec, nil
}

func (s *MemoryAccountStore) CreateAccount(_ context.Context, record *domain.CredentialRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Identifier]; exists {
		return "", domain.ErrAccountExists
	}
	s.seq++
	rec := *record
	rec.ID = strconv.Itoa(s.seq)
	s.records[rec.Identifier] = rec
	return rec.ID, nil
}
