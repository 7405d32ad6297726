package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/api/metrics"
	"github.com/99minutos/session-security/internal/api/middleware"
	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
)

// SessionHandler exposes administrative session operations.
type SessionHandler struct {
	registry ports.SessionRegistry
	audit    ports.AuditSink
	log      zerolog.Logger
}

func NewSessionHandler(registry ports.SessionRegistry, audit ports.AuditSink, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{registry: registry, audit: audit, log: log}
}

// Evict ends every live session of an identifier.
//
// @Summary      Evict a user's sessions
// @Tags         sessions
// @Produce      json
// @Param        identifier  path      string  true  "Account identifier"
// @Success      200         {object}  evictionResponse
// @Failure      400         {object}  errorResponse
// @Failure      403         {object}  errorResponse
// @Router       /admin/sessions/{identifier} [delete]
func (h *SessionHandler) Evict(c echo.Context) error {
	identifier := strings.TrimSpace(c.Param("identifier"))
	if identifier == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identifier is required")
	}

	n, err := h.registry.InvalidateAllForIdentifier(c.Request().Context(), identifier)
	if err != nil {
		return err
	}

	if n > 0 {
		metrics.SessionsEndedTotal.WithLabelValues("admin_eviction").Add(float64(n))
		actor := ""
		if p := middleware.PrincipalFrom(c); p != nil {
			actor = p.Identifier
		}
		h.audit.Record(domain.AuthEvent{
			Type:       domain.EventEvicted,
			Identifier: identifier,
			Reason:     "evicted by " + actor,
			RemoteAddr: c.RealIP(),
		})
		h.log.Info().Str("identifier", identifier).Str("actor", actor).Int("count", n).Msg("sessions evicted")
	}

	return c.JSON(http.StatusOK, evictionResponse{Identifier: identifier, Evicted: n})
}
