package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/session-security/internal/core/domain"
)

// RBAC enforces role-based access control on a route group, on top of the
// path rules evaluated by Gate.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "login required")
			}
			if !p.HasRole(allowedRoles...) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
