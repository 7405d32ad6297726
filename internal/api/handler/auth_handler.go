package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/api/metrics"
	"github.com/99minutos/session-security/internal/api/middleware"
	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
	"github.com/99minutos/session-security/internal/core/service"
)

const (
	msgSignupDone     = "회원 가입이 완료되었습니다."
	msgSignupConflict = "중복 된 회원이 존재합니다."
	msgSignupInternal = "서버 내부에서 오류가 발생했습니다."
)

// AuthRoutes are the redirect targets used by the login flow.
type AuthRoutes struct {
	LoginPath         string
	LoginSuccessPath  string
	LogoutSuccessPath string
}

type AuthHandler struct {
	auth       ports.AuthService
	registry   ports.SessionRegistry
	cookie     *middleware.SessionCookie
	classifier service.FailureClassifier
	audit      ports.AuditSink
	routes     AuthRoutes
	log        zerolog.Logger
}

func NewAuthHandler(
	auth ports.AuthService,
	registry ports.SessionRegistry,
	cookie *middleware.SessionCookie,
	classifier service.FailureClassifier,
	audit ports.AuditSink,
	routes AuthRoutes,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		registry:   registry,
		cookie:     cookie,
		classifier: classifier,
		audit:      audit,
		routes:     routes,
		log:        log,
	}
}

type loginForm struct {
	User string `form:"user" json:"user"`
	Pass string `form:"pass" json:"pass"`
}

type signupRequest struct {
	User string `form:"user" json:"user" validate:"required"`
	Pass string `form:"pass" json:"pass" validate:"required"`
	Role string `form:"role" json:"role"`
}

type formResponse struct {
	Action string   `json:"action"`
	Method string   `json:"method"`
	Fields []string `json:"fields"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// LoginPage describes the login form.
//
// @Summary      Login form description
// @Tags         auth
// @Produce      json
// @Success      200  {object}  formResponse
// @Router       /auth/login [get]
func (h *AuthHandler) LoginPage(c echo.Context) error {
	return c.JSON(http.StatusOK, formResponse{
		Action: h.routes.LoginPath,
		Method: http.MethodPost,
		Fields: []string{"user", "pass"},
	})
}

// SignupPage describes the signup form.
//
// @Summary      Signup form description
// @Tags         auth
// @Produce      json
// @Success      200  {object}  formResponse
// @Router       /user/signup [get]
func (h *AuthHandler) SignupPage(c echo.Context) error {
	return c.JSON(http.StatusOK, formResponse{
		Action: "/user/signup",
		Method: http.MethodPost,
		Fields: []string{"user", "pass", "role"},
	})
}

// Login authenticates the submitted form and starts a session. Any session
// the same identifier held elsewhere is displaced by the registry.
//
// @Summary      Submit login form
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Param        user  formData  string  true  "Identifier"
// @Param        pass  formData  string  true  "Secret"
// @Success      302
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var form loginForm
	if err := c.Bind(&form); err != nil {
		return h.loginFailed(c, "", domain.NewAuthFailure(domain.FailureCredentialsAbsent, err))
	}

	ctx := c.Request().Context()
	principal, err := h.auth.Authenticate(ctx, form.User, form.Pass)
	if err != nil {
		return h.loginFailed(c, form.User, err)
	}

	// A browser that already carried a session gets a fresh ID.
	if prev := middleware.SessionIDFrom(c); prev != "" {
		if err := h.registry.Invalidate(ctx, prev); err != nil {
			h.log.Warn().Err(err).Msg("failed to drop previous browser session")
		}
	}

	handle, err := h.registry.Register(ctx, *principal)
	if err != nil {
		return h.loginFailed(c, form.User, domain.NewAuthFailure(domain.FailureInternal, err))
	}
	if err := h.cookie.Write(c, handle.ID); err != nil {
		_ = h.registry.Invalidate(ctx, handle.ID)
		return h.loginFailed(c, form.User, domain.NewAuthFailure(domain.FailureInternal, err))
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	h.audit.Record(domain.AuthEvent{
		Type:       domain.EventLoginSucceeded,
		Identifier: principal.Identifier,
		RemoteAddr: c.RealIP(),
	})
	h.log.Info().Str("identifier", principal.Identifier).Str("role", principal.Role.Tag()).Msg("login succeeded")

	return c.Redirect(http.StatusFound, h.routes.LoginSuccessPath)
}

func (h *AuthHandler) loginFailed(c echo.Context, identifier string, err error) error {
	kind := domain.FailureUnknown
	var failure *domain.AuthFailure
	if errors.As(err, &failure) {
		kind = failure.Kind
	}

	if kind == domain.FailureInternal || kind == domain.FailureUnknown {
		h.log.Error().Err(err).Str("identifier", identifier).Msg("login failed")
	} else {
		h.log.Info().Str("identifier", identifier).Str("reason", kind.String()).Msg("login rejected")
	}
	metrics.LoginAttemptsTotal.WithLabelValues(kind.String()).Inc()
	h.audit.Record(domain.AuthEvent{
		Type:       domain.EventLoginFailed,
		Identifier: identifier,
		Reason:     kind.String(),
		RemoteAddr: c.RealIP(),
	})

	return c.Redirect(http.StatusFound, h.classifier.Classify(err).Target)
}

// Logout ends the session named by the cookie and clears it. A stale cookie
// never ends a newer session of the same user.
//
// @Summary      Logout
// @Tags         auth
// @Success      302
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if id, ok := h.cookie.Read(c); ok {
		handle, err := h.registry.Resolve(ctx, id)
		switch {
		case err == nil:
			if err := h.registry.Invalidate(ctx, id); err != nil {
				h.log.Error().Err(err).Msg("logout: invalidate failed")
			} else {
				metrics.SessionsEndedTotal.WithLabelValues("logout").Inc()
				h.audit.Record(domain.AuthEvent{
					Type:       domain.EventLogout,
					Identifier: handle.Identifier,
					RemoteAddr: c.RealIP(),
				})
			}
		case !errors.Is(err, domain.ErrSessionNotFound):
			h.log.Error().Err(err).Msg("logout: session lookup failed")
		}
	}
	h.cookie.Clear(c)
	return c.Redirect(http.StatusFound, h.routes.LogoutSuccessPath)
}

// FailPage echoes the decoded failure message.
//
// @Summary      Login failure page
// @Tags         auth
// @Produce      json
// @Param        message  query     string  false  "Failure message"
// @Success      200      {object}  messageResponse
// @Router       /auth/fail [get]
func (h *AuthHandler) FailPage(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: c.QueryParam("message")})
}

// Signup creates an account. Anonymous callers may only create USER
// accounts; any other role requires an ADMIN session.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        user  formData  string  true  "Identifier"
// @Param        pass  formData  string  true  "Secret"
// @Param        role  formData  string  false "USER (default), or ADMIN when called by an admin"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  messageResponse
// @Failure      500   {object}  messageResponse
// @Router       /user/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role := domain.RoleUser
	if req.Role != "" {
		parsed, err := domain.ParseRole(req.Role)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "role must be one of: ADMIN USER")
		}
		role = parsed
	}
	if role != domain.RoleUser && !middleware.PrincipalFrom(c).HasRole(domain.RoleAdmin) {
		h.log.Warn().Str("identifier", req.User).Str("role", role.Tag()).Msg("signup with elevated role refused")
		return domain.ErrForbidden
	}

	_, err := h.auth.Register(c.Request().Context(), ports.SignupInput{
		Identifier: req.User,
		Secret:     req.Pass,
		Role:       role.Tag(),
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, messageResponse{Message: msgSignupDone})
	case errors.Is(err, domain.ErrAccountExists):
		return c.JSON(http.StatusConflict, messageResponse{Message: msgSignupConflict})
	case errors.Is(err, domain.ErrInvalidSignup):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Str("identifier", req.User).Msg("signup failed")
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgSignupInternal})
	}
}
