package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/api/metrics"
	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
	"github.com/99minutos/session-security/internal/core/service"
)

// GateConfig wires the request gate.
type GateConfig struct {
	Registry   ports.SessionRegistry
	Policy     *service.AccessPolicy
	Cookie     *SessionCookie
	Classifier service.FailureClassifier

	LoginPath string
	// InvalidSessionPath is where a request carrying a dead session is sent
	// when the path needs a login. Defaults to LoginPath.
	InvalidSessionPath string
	// BypassPrefixes are never gated (static assets, probes).
	BypassPrefixes []string
	// BypassPaths are exact paths handled before authorization, such as logout.
	BypassPaths []string

	Log zerolog.Logger
}

// Gate resolves the session cookie, evaluates the access policy and either
// dispatches, redirects to login, or answers 403.
func Gate(cfg GateConfig) echo.MiddlewareFunc {
	invalidTarget := cfg.InvalidSessionPath
	if invalidTarget == "" {
		invalidTarget = cfg.LoginPath
	}
	bypass := make(map[string]struct{}, len(cfg.BypassPaths))
	for _, p := range cfg.BypassPaths {
		bypass[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if _, ok := bypass[path]; ok || hasAnyPrefix(path, cfg.BypassPrefixes) {
				return next(c)
			}

			var principal *domain.Principal
			deadSession := false
			if id, ok := cfg.Cookie.Read(c); ok {
				h, err := cfg.Registry.Resolve(c.Request().Context(), id)
				switch {
				case err == nil:
					setSession(c, h)
					principal = &h.Principal
				case errors.Is(err, domain.ErrSessionNotFound):
					deadSession = true
				default:
					cfg.Log.Error().Err(err).Str("path", path).Msg("session lookup failed")
					redirect := cfg.Classifier.Classify(domain.NewAuthFailure(domain.FailureInternal, err))
					return c.Redirect(http.StatusFound, redirect.Target)
				}
			} else if cfg.Cookie.Present(c) {
				deadSession = true
			}
			if deadSession {
				cfg.Cookie.Clear(c)
			}

			decision := cfg.Policy.Authorize(path, principal)
			metrics.AccessDecisionsTotal.WithLabelValues(decision.String()).Inc()

			switch decision {
			case domain.Allow:
				return next(c)
			case domain.Forbidden:
				cfg.Log.Debug().Str("path", path).Str("identifier", principal.Identifier).Msg("access denied")
				return c.JSON(http.StatusForbidden, map[string]string{"error": "access denied"})
			default:
				if deadSession {
					return c.Redirect(http.StatusFound, invalidTarget)
				}
				return c.Redirect(http.StatusFound, cfg.LoginPath)
			}
		}
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
