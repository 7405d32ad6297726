package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/session-security/internal/core/domain"
)

const (
	principalKey = "principal"
	sessionIDKey = "session_id"
)

// PrincipalFrom returns the principal the gate attached, or nil for
// anonymous requests.
func PrincipalFrom(c echo.Context) *domain.Principal {
	p, _ := c.Get(principalKey).(*domain.Principal)
	return p
}

// SessionIDFrom returns the resolved session ID, or "".
func SessionIDFrom(c echo.Context) string {
	id, _ := c.Get(sessionIDKey).(string)
	return id
}

func setSession(c echo.Context, h *domain.SessionHandle) {
	p := h.Principal
	c.Set(principalKey, &p)
	c.Set(sessionIDKey, h.ID)
}
