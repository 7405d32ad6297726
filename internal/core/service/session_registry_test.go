package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/99minutos/session-security/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func principal(id string, role domain.Role) domain.Principal {
	return domain.Principal{Identifier: id, Role: role, IssuedAt: time.Now()}
}

func TestMemorySessionRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewMemorySessionRegistry()
	ctx := context.Background()

	h, err := reg.Register(ctx, principal("u1", domain.RoleUser))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.ID == "" {
		t.Fatalf("expected session id")
	}

	got, err := reg.Resolve(ctx, h.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Identifier != "u1" || got.Principal.Role != domain.RoleUser {
		t.Fatalf("unexpected handle: %+v", got)
	}
}

func TestMemorySessionRegistry_SecondLoginDisplacesFirst(t *testing.T) {
	var displaced []domain.SessionHandle
	reg := NewMemorySessionRegistry(WithDisplaceHook(func(h domain.SessionHandle) {
		displaced = append(displaced, h)
	}))
	ctx := context.Background()

	first, _ := reg.Register(ctx, principal("u1", domain.RoleUser))
	second, _ := reg.Register(ctx, principal("u1", domain.RoleUser))

	if _, err := reg.Resolve(ctx, first.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("first session should be gone, got %v", err)
	}
	if _, err := reg.Resolve(ctx, second.ID); err != nil {
		t.Fatalf("second session should resolve: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected exactly one live session, got %d", reg.Len())
	}
	if len(displaced) != 1 || displaced[0].ID != first.ID {
		t.Fatalf("expected displace hook for first session, got %+v", displaced)
	}
}

func TestMemorySessionRegistry_OtherIdentifiersUnaffected(t *testing.T) {
	reg := NewMemorySessionRegistry()
	ctx := context.Background()

	a, _ := reg.Register(ctx, principal("a", domain.RoleUser))
	_, _ = reg.Register(ctx, principal("b", domain.RoleAdmin))

	if _, err := reg.Resolve(ctx, a.ID); err != nil {
		t.Fatalf("session for a should survive login of b: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", reg.Len())
	}
}

func TestMemorySessionRegistry_Invalidate(t *testing.T) {
	reg := NewMemorySessionRegistry()
	ctx := context.Background()

	h, _ := reg.Register(ctx, principal("u1", domain.RoleUser))
	if err := reg.Invalidate(ctx, h.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := reg.Resolve(ctx, h.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := reg.Invalidate(ctx, h.ID); err != nil {
		t.Fatalf("second Invalidate should be a no-op, got %v", err)
	}

	// a fresh login after logout must not be treated as a displacement
	h2, _ := reg.Register(ctx, principal("u1", domain.RoleUser))
	if _, err := reg.Resolve(ctx, h2.ID); err != nil {
		t.Fatalf("new session should resolve: %v", err)
	}
}

func TestMemorySessionRegistry_InvalidateAllForIdentifier(t *testing.T) {
	reg := NewMemorySessionRegistry()
	ctx := context.Background()

	h, _ := reg.Register(ctx, principal("u1", domain.RoleUser))
	n, err := reg.InvalidateAllForIdentifier(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 eviction, got %d (%v)", n, err)
	}
	if _, err := reg.Resolve(ctx, h.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if n, _ := reg.InvalidateAllForIdentifier(ctx, "u1"); n != 0 {
		t.Fatalf("expected 0 evictions, got %d", n)
	}
}

func TestMemorySessionRegistry_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := NewMemorySessionRegistry(
		WithClock(clock.Now),
		WithExpiry(domain.SessionExpiry{IdleTimeout: 10 * time.Minute, MaxLifetime: time.Hour}),
	)
	ctx := context.Background()

	h, _ := reg.Register(ctx, principal("u1", domain.RoleUser))

	clock.Advance(9 * time.Minute)
	if _, err := reg.Resolve(ctx, h.ID); err != nil {
		t.Fatalf("session should still be live: %v", err)
	}

	// activity refreshed the idle window
	clock.Advance(9 * time.Minute)
	if _, err := reg.Resolve(ctx, h.ID); err != nil {
		t.Fatalf("session should still be live after activity: %v", err)
	}

	clock.Advance(11 * time.Minute)
	if _, err := reg.Resolve(ctx, h.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("idle session should expire, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expired session should be removed")
	}
}

func TestMemorySessionRegistry_MaxLifetime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := NewMemorySessionRegistry(
		WithClock(clock.Now),
		WithExpiry(domain.SessionExpiry{MaxLifetime: time.Hour}),
	)
	ctx := context.Background()

	h, _ := reg.Register(ctx, principal("u1", domain.RoleUser))
	clock.Advance(61 * time.Minute)
	if _, err := reg.Resolve(ctx, h.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("session past max lifetime should expire, got %v", err)
	}
}

func TestMemorySessionRegistry_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := NewMemorySessionRegistry(
		WithClock(clock.Now),
		WithExpiry(domain.SessionExpiry{IdleTimeout: time.Minute}),
	)
	ctx := context.Background()

	_, _ = reg.Register(ctx, principal("a", domain.RoleUser))
	clock.Advance(2 * time.Minute)
	_, _ = reg.Register(ctx, principal("b", domain.RoleUser))

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", reg.Len())
	}
}

func TestMemorySessionRegistry_IDGeneratorFailure(t *testing.T) {
	reg := NewMemorySessionRegistry(WithIDGenerator(func() (string, error) {
		return "", errors.New("no entropy")
	}))
	if _, err := reg.Register(context.Background(), principal("u1", domain.RoleUser)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMemorySessionRegistry_ConcurrentLoginsLeaveOneWinner(t *testing.T) {
	reg := NewMemorySessionRegistry()
	ctx := context.Background()

	const n = 64
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := reg.Register(ctx, principal("u1", domain.RoleUser))
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			ids[i] = h.ID
		}(i)
	}
	wg.Wait()

	live := 0
	for _, id := range ids {
		if _, err := reg.Resolve(ctx, id); err == nil {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected exactly one live session, got %d", live)
	}
}

func TestMemorySessionRegistry_Close(t *testing.T) {
	reg := NewMemorySessionRegistry()
	h, _ := reg.Register(context.Background(), principal("u1", domain.RoleUser))
	_ = reg.Close()
	if _, err := reg.Resolve(context.Background(), h.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected sessions cleared on close")
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
