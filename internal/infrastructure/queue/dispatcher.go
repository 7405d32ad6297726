package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	drainTimeout   = 5 * time.Second
)

// Dispatcher records authentication audit events on a fixed set of workers.
// Events are sharded by identifier so each account's trail stays ordered.
type Dispatcher struct {
	workers []chan domain.AuthEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used. A nil repo only logs events.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuthEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled,
// after persisting the events already queued.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Record enqueues an event. When the worker's buffer is full the event is
// dropped and logged rather than stalling the request.
func (d *Dispatcher) Record(event domain.AuthEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case d.workers[d.shardIndex(event.Identifier)] <- event:
	default:
		d.log.Warn().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Str("identifier", event.Identifier).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps an identifier deterministically to a worker index.
func (d *Dispatcher) shardIndex(identifier string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case event := <-ch:
			if ctx.Err() != nil {
				d.drain(id, ch, event)
				return
			}
			d.handle(ctx, id, event)
		}
	}
}

// drain persists whatever is still buffered once the worker context is
// cancelled, using a fresh bounded context.
func (d *Dispatcher) drain(id int, ch <-chan domain.AuthEvent, pending ...domain.AuthEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, event := range pending {
		d.handle(ctx, id, event)
	}
	for {
		select {
		case event := <-ch:
			d.handle(ctx, id, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, id int, event domain.AuthEvent) {
	d.log.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("identifier", event.Identifier).
		Str("reason", event.Reason).
		Msg("auth event")

	if d.repo == nil {
		return
	}
	if err := d.repo.InsertEvent(ctx, &event); err != nil {
		d.log.Error().Err(err).
			Str("event_id", event.ID).
			Int("worker_id", id).
			Msg("audit event persistence failed")
	}
}
