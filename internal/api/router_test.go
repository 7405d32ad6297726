package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/api/middleware"
	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/service"
	"github.com/99minutos/session-security/internal/infrastructure/hasher"
)

type discardSink struct{}

func (discardSink) Record(domain.AuthEvent) {}

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()
	policy, err := service.NewAccessPolicy(domain.DefaultAccessRules())
	if err != nil {
		t.Fatalf("NewAccessPolicy: %v", err)
	}
	auth := service.NewAuthService(service.NewMemoryAccountStore(), hasher.NewBcrypt(4), zerolog.Nop())
	if err := auth.BootstrapAdmin(context.Background(), "root", "pw-admin"); err != nil {
		t.Fatalf("BootstrapAdmin: %v", err)
	}
	return NewRouter(Deps{
		Auth:       auth,
		Registry:   service.NewMemorySessionRegistry(),
		Policy:     policy,
		Cookie:     middleware.NewSessionCookie("SESSIONID", []byte("0123456789abcdef0123456789abcdef"), false, 0),
		Classifier: service.NewFailureClassifier("/auth/fail"),
		Audit:      discardSink{},
		Paths: Paths{
			Login:         "/auth/login",
			Logout:        "/auth/logout",
			LoginSuccess:  "/",
			LogoutSuccess: "/",
			Failure:       "/auth/fail",
			Static:        []string{"/css/"},
		},
		Log: zerolog.Nop(),
	})
}

func do(e *echo.Echo, method, target string, form url.Values, ck *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if ck != nil {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "SESSIONID" && ck.MaxAge >= 0 {
			return ck
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func signupAndLogin(t *testing.T, e *echo.Echo, user, pass, role string) *http.Cookie {
	t.Helper()
	if rec := do(e, http.MethodPost, "/user/signup", url.Values{"user": {user}, "pass": {pass}, "role": {role}}, nil); rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: expected 201, got %d %s", user, rec.Code, rec.Body.String())
	}
	return login(t, e, user, pass)
}

func login(t *testing.T, e *echo.Echo, user, pass string) *http.Cookie {
	t.Helper()
	rec := do(e, http.MethodPost, "/auth/login", url.Values{"user": {user}, "pass": {pass}}, nil)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/" {
		t.Fatalf("login %s: expected redirect to /, got %d %q", user, rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	return sessionCookie(t, rec)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	e := newTestRouter(t)
	t1 := signupAndLogin(t, e, "u1", "pw-1234", "USER")

	if rec := do(e, http.MethodGet, "/admin/page", nil, t1); rec.Code != http.StatusForbidden {
		t.Fatalf("admin page as USER: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/user/page", nil, t1); rec.Code != http.StatusOK {
		t.Fatalf("user page: expected 200, got %d", rec.Code)
	}

	// A second login elsewhere displaces the first session.
	t2 := login(t, e, "u1", "pw-1234")
	rec := do(e, http.MethodGet, "/user/page", nil, t1)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/auth/login" {
		t.Fatalf("displaced session: expected redirect to login, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/user/page", nil, t2); rec.Code != http.StatusOK {
		t.Fatalf("new session: expected 200, got %d", rec.Code)
	}

	if rec := do(e, http.MethodPost, "/auth/logout", nil, t2); rec.Code != http.StatusFound {
		t.Fatalf("logout: expected 302, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/user/page", nil, t2); rec.Code != http.StatusFound {
		t.Fatalf("after logout: expected 302, got %d", rec.Code)
	}
}

func TestRouter_LoginFailureRedirect(t *testing.T) {
	e := newTestRouter(t)
	signupAndLogin(t, e, "u1", "pw-1234", "USER")

	tests := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"wrong secret", url.Values{"user": {"u1"}, "pass": {"nope"}}, domain.MessageBadCredentials},
		{"unknown account", url.Values{"user": {"ghost"}, "pass": {"pw"}}, domain.MessageAccountNotFound},
		{"empty form", url.Values{"user": {""}, "pass": {""}}, domain.MessageCredentialsAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/auth/login", tt.form, nil)
			want := "/auth/fail?message=" + url.QueryEscape(tt.msg)
			if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != want {
				t.Fatalf("expected redirect to %q, got %d %q", want, rec.Code, rec.Header().Get(echo.HeaderLocation))
			}
			// The failure page itself is public.
			if page := do(e, http.MethodGet, want, nil, nil); page.Code != http.StatusOK {
				t.Fatalf("failure page: expected 200, got %d", page.Code)
			}
		})
	}
}

func TestRouter_AdminEviction(t *testing.T) {
	e := newTestRouter(t)
	user := signupAndLogin(t, e, "u1", "pw-1234", "USER")
	admin := login(t, e, "root", "pw-admin")

	if rec := do(e, http.MethodDelete, "/admin/sessions/root", nil, user); rec.Code != http.StatusForbidden {
		t.Fatalf("eviction as USER: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/admin/sessions/u1", nil, admin); rec.Code != http.StatusOK {
		t.Fatalf("eviction as ADMIN: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/user/page", nil, user); rec.Code != http.StatusFound {
		t.Fatalf("evicted session: expected 302, got %d", rec.Code)
	}
}

func TestRouter_Bypass(t *testing.T) {
	e := newTestRouter(t)

	if rec := do(e, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("/health: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/metrics", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("/metrics: expected 200, got %d", rec.Code)
	}
	// Static paths skip the gate; the 404 comes from the router, not a login redirect.
	if rec := do(e, http.MethodGet, "/css/site.css", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("static: expected 404, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/anything", nil, nil); rec.Code != http.StatusFound {
		t.Fatalf("unmatched path: expected login redirect, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/health/ready", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("/health/ready: expected 200, got %d", rec.Code)
	}
}

func TestRouter_BypassIsSegmentBounded(t *testing.T) {
	e := newTestRouter(t)

	for _, path := range []string{"/healthz", "/health-admin", "/metricsfoo", "/metrics/extra", "/swagger"} {
		rec := do(e, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/auth/login" {
			t.Fatalf("%s: expected login redirect, got %d %q", path, rec.Code, rec.Header().Get(echo.HeaderLocation))
		}
	}
}

func TestRouter_SignupCannotSelfGrantAdmin(t *testing.T) {
	e := newTestRouter(t)
	victim := signupAndLogin(t, e, "u1", "pw-1234", "USER")

	rec := do(e, http.MethodPost, "/user/signup", url.Values{"user": {"mallory"}, "pass": {"pw-1234"}, "role": {"ADMIN"}}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous ADMIN signup: expected 403, got %d %s", rec.Code, rec.Body.String())
	}
	// Nothing was created, so the login fails.
	rec = do(e, http.MethodPost, "/auth/login", url.Values{"user": {"mallory"}, "pass": {"pw-1234"}}, nil)
	if want := "/auth/fail?message=" + url.QueryEscape(domain.MessageAccountNotFound); rec.Header().Get(echo.HeaderLocation) != want {
		t.Fatalf("expected account-not-found redirect, got %q", rec.Header().Get(echo.HeaderLocation))
	}

	// A plain USER session cannot elevate either.
	rec = do(e, http.MethodPost, "/user/signup", url.Values{"user": {"mallory"}, "pass": {"pw-1234"}, "role": {"ADMIN"}}, victim)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("USER-issued ADMIN signup: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/user/page", nil, victim); rec.Code != http.StatusOK {
		t.Fatalf("victim session: expected 200, got %d", rec.Code)
	}

	// An admin session may create another admin.
	admin := login(t, e, "root", "pw-admin")
	rec = do(e, http.MethodPost, "/user/signup", url.Values{"user": {"ops"}, "pass": {"pw-ops"}, "role": {"ADMIN"}}, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin-issued ADMIN signup: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	ops := login(t, e, "ops", "pw-ops")
	if rec := do(e, http.MethodGet, "/admin/page", nil, ops); rec.Code != http.StatusOK {
		t.Fatalf("new admin: expected 200 on admin page, got %d", rec.Code)
	}
}

func TestRouter_SignupPage(t *testing.T) {
	e := newTestRouter(t)

	rec := do(e, http.MethodGet, "/user/signup", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup page: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"action":"/user/signup"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
