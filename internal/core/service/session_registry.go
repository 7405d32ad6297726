package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
)

// MemorySessionRegistry keeps sessions in process memory. A single mutex
// guards both indexes so registration and eviction for one identifier are
// never observed half-done.
type MemorySessionRegistry struct {
	mu           sync.Mutex
	byID         map[string]*domain.SessionHandle
	byIdentifier map[string]string

	expiry     domain.SessionExpiry
	newID      func() (string, error)
	now        func() time.Time
	onDisplace ports.DisplaceFunc
}

// RegistryOption configures a MemorySessionRegistry.
type RegistryOption func(*MemorySessionRegistry)

func WithExpiry(e domain.SessionExpiry) RegistryOption {
	return func(r *MemorySessionRegistry) { r.expiry = e }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *MemorySessionRegistry) { r.now = now }
}

func WithIDGenerator(gen func() (string, error)) RegistryOption {
	return func(r *MemorySessionRegistry) { r.newID = gen }
}

// WithDisplaceHook is called, outside the lock, for every session evicted by
// a newer login.
func WithDisplaceHook(fn ports.DisplaceFunc) RegistryOption {
	return func(r *MemorySessionRegistry) { r.onDisplace = fn }
}

func NewMemorySessionRegistry(opts ...RegistryOption) *MemorySessionRegistry {
	r := &MemorySessionRegistry{
		byID:         make(map[string]*domain.SessionHandle),
		byIdentifier: make(map[string]string),
		newID:        NewSessionID,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemorySessionRegistry) Register(_ context.Context, principal domain.Principal) (*domain.SessionHandle, error) {
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := r.now()
	handle := &domain.SessionHandle{
		ID:         id,
		Identifier: principal.Identifier,
		Principal:  principal,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	r.mu.Lock()
	displaced := r.evictLocked(principal.Identifier)
	r.byID[id] = handle
	r.byIdentifier[principal.Identifier] = id
	r.mu.Unlock()

	if displaced != nil && r.onDisplace != nil {
		r.onDisplace(*displaced)
	}
	out := *handle
	return &out, nil
}

func (r *MemorySessionRegistry) Resolve(_ context.Context, sessionID string) (*domain.SessionHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byID[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	now := r.now()
	if r.expiry.Expired(h, now) {
		r.removeLocked(h)
		return nil, domain.ErrSessionNotFound
	}
	h.LastSeenAt = now
	out := *h
	return &out, nil
}

func (r *MemorySessionRegistry) Invalidate(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.byID[sessionID]; ok {
		r.removeLocked(h)
	}
	return nil
}

func (r *MemorySessionRegistry) InvalidateAllForIdentifier(_ context.Context, identifier string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictLocked(identifier) == nil {
		return 0, nil
	}
	return 1, nil
}

// Sweep drops every expired handle and returns how many were removed.
func (r *MemorySessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for _, h := range r.byID {
		if r.expiry.Expired(h, now) {
			r.removeLocked(h)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled. onSwept, when
// set, receives the number of handles removed by each non-empty sweep.
func (r *MemorySessionRegistry) RunSweeper(ctx context.Context, interval time.Duration, onSwept func(n int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && onSwept != nil {
				onSwept(n)
			}
		}
	}
}

// Len returns the number of live handles.
func (r *MemorySessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Close clears every session.
func (r *MemorySessionRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*domain.SessionHandle)
	r.byIdentifier = make(map[string]string)
	return nil
}

func (r *MemorySessionRegistry) evictLocked(identifier string) *domain.SessionHandle {
	id, ok := r.byIdentifier[identifier]
	if !ok {
		return nil
	}
	h := r.byID[id]
	delete(r.byID, id)
	delete(r.byIdentifier, identifier)
	return h
}

func (r *MemorySessionRegistry) removeLocked(h *domain.SessionHandle) {
	delete(r.byID, h.ID)
	if r.byIdentifier[h.Identifier] == h.ID {
		delete(r.byIdentifier, h.Identifier)
	}
}
