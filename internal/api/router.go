package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/session-security/docs"
	"github.com/99minutos/session-security/internal/api/handler"
	"github.com/99minutos/session-security/internal/api/middleware"
	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
	"github.com/99minutos/session-security/internal/core/service"
)

// Paths are the configurable entry points of the login flow.
type Paths struct {
	Login          string
	Logout         string
	LoginSuccess   string
	LogoutSuccess  string
	Failure        string
	InvalidSession string
	Static         []string
}

// Deps carries everything NewRouter wires together.
type Deps struct {
	Auth       ports.AuthService
	Registry   ports.SessionRegistry
	Policy     *service.AccessPolicy
	Cookie     *middleware.SessionCookie
	Classifier service.FailureClassifier
	Audit      ports.AuditSink
	Checks     map[string]handler.CheckFunc
	Paths      Paths
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(middleware.Metrics())
	e.Use(middleware.Gate(middleware.GateConfig{
		Registry:           d.Registry,
		Policy:             d.Policy,
		Cookie:             d.Cookie,
		Classifier:         d.Classifier,
		LoginPath:          d.Paths.Login,
		InvalidSessionPath: d.Paths.InvalidSession,
		BypassPrefixes:     append([]string{"/health/", "/swagger/"}, d.Paths.Static...),
		BypassPaths:        []string{d.Paths.Logout, "/health", "/metrics"},
		Log:                d.Log,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Registry, d.Cookie, d.Classifier, d.Audit, handler.AuthRoutes{
		LoginPath:         d.Paths.Login,
		LoginSuccessPath:  d.Paths.LoginSuccess,
		LogoutSuccessPath: d.Paths.LogoutSuccess,
	}, d.Log)
	pageHandler := handler.NewPageHandler()
	sessionHandler := handler.NewSessionHandler(d.Registry, d.Audit, d.Log)

	// --- Auth routes ---
	e.GET(d.Paths.Login, authHandler.LoginPage)
	e.POST(d.Paths.Login, authHandler.Login)
	e.GET(d.Paths.Logout, authHandler.Logout)
	e.POST(d.Paths.Logout, authHandler.Logout)
	e.GET(d.Paths.Failure, authHandler.FailPage)
	e.GET("/user/signup", authHandler.SignupPage)
	e.POST("/user/signup", authHandler.Signup)

	// --- Pages ---
	e.GET("/", pageHandler.Home)
	e.GET("/admin/page", pageHandler.AdminPage)
	e.GET("/user/page", pageHandler.UserPage)
	e.GET("/me", pageHandler.Me)

	// --- Admin ---
	admin := e.Group("/admin", middleware.RBAC(domain.RoleAdmin))
	admin.DELETE("/sessions/:identifier", sessionHandler.Evict)

	// --- Health probes, metrics and docs (bypass the gate) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(d.Checks).Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
