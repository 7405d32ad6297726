package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/core/domain"
)

type stubAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	err    error
}

func (r *stubAuditRepo) InsertEvent(_ context.Context, e *domain.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, *e)
	return nil
}

func (r *stubAuditRepo) snapshot() []domain.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuthEvent(nil), r.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestDispatcher_PreservesPerIdentifierOrder(t *testing.T) {
	repo := &stubAuditRepo{}
	d := NewDispatcher(4, repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	types := []domain.AuthEventType{domain.EventLoginSucceeded, domain.EventDisplaced, domain.EventLogout}
	for _, typ := range types {
		d.Record(domain.AuthEvent{Type: typ, Identifier: "u1", Timestamp: time.Now()})
	}

	waitFor(t, func() bool { return len(repo.snapshot()) == len(types) })
	for i, e := range repo.snapshot() {
		if e.Type != types[i] {
			t.Fatalf("event %d: got %s, want %s", i, e.Type, types[i])
		}
		if e.ID == "" {
			t.Fatalf("event %d: expected generated id", i)
		}
	}
}

func TestDispatcher_ShardIndexDeterministic(t *testing.T) {
	d := NewDispatcher(8, nil, zerolog.Nop())
	for _, id := range []string{"u1", "admin", "", "한글"} {
		a, b := d.shardIndex(id), d.shardIndex(id)
		if a != b || a < 0 || a >= 8 {
			t.Fatalf("shardIndex(%q) = %d/%d", id, a, b)
		}
	}
}

func TestDispatcher_RepoErrorDoesNotStopWorker(t *testing.T) {
	repo := &stubAuditRepo{err: errors.New("mongo down")}
	d := NewDispatcher(1, repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Record(domain.AuthEvent{Type: domain.EventLoginFailed, Identifier: "u1"})

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()
	d.Record(domain.AuthEvent{Type: domain.EventLoginSucceeded, Identifier: "u1"})

	waitFor(t, func() bool { return len(repo.snapshot()) >= 1 })
	cancel()
	d.Wait()
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, nil, zerolog.Nop())
	// workers not started: the buffer fills and Record must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer+10; i++ {
			d.Record(domain.AuthEvent{Type: domain.EventLoginFailed, Identifier: "u1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on a full queue")
	}
}

func TestDispatcher_DrainsQueueOnShutdown(t *testing.T) {
	repo := &stubAuditRepo{}
	d := NewDispatcher(1, repo, zerolog.Nop())

	const n = 50
	for i := 0; i < n; i++ {
		d.Record(domain.AuthEvent{Type: domain.EventLogout, Identifier: "u1"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Wait()

	if got := len(repo.snapshot()); got != n {
		t.Fatalf("persisted %d events, want %d", got, n)
	}
}
