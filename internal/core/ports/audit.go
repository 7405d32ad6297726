package ports

import (
	"context"

	"github.com/99minutos/session-security/internal/core/domain"
)

// AuditRepository persists authentication audit events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}

// AuditSink accepts events for asynchronous recording. Record must not block
// the request path for long.
type AuditSink interface {
	Record(event domain.AuthEvent)
}
