package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
)

// SessionCookie carries the session ID to and from the browser. The value is
// HMAC-signed so a tampered cookie is rejected before the registry is hit.
type SessionCookie struct {
	name   string
	codec  *securecookie.SecureCookie
	secure bool
	maxAge time.Duration
}

// NewSessionCookie builds a cookie codec. An empty hashKey gets a random key,
// which invalidates every cookie on restart.
func NewSessionCookie(name string, hashKey []byte, secure bool, maxAge time.Duration) *SessionCookie {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, nil)
	if maxAge > 0 {
		codec.MaxAge(int(maxAge.Seconds()))
	}
	return &SessionCookie{name: name, codec: codec, secure: secure, maxAge: maxAge}
}

func (s *SessionCookie) Name() string { return s.name }

// Read returns the session ID, or false when the cookie is missing or fails
// verification.
func (s *SessionCookie) Read(c echo.Context) (string, bool) {
	ck, err := c.Cookie(s.name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	var id string
	if err := s.codec.Decode(s.name, ck.Value, &id); err != nil {
		return "", false
	}
	return id, id != ""
}

// Present reports whether the request carries the cookie at all, valid or not.
func (s *SessionCookie) Present(c echo.Context) bool {
	ck, err := c.Cookie(s.name)
	return err == nil && ck.Value != ""
}

func (s *SessionCookie) Write(c echo.Context, sessionID string) error {
	encoded, err := s.codec.Encode(s.name, sessionID)
	if err != nil {
		return err
	}
	ck := s.base()
	ck.Value = encoded
	if s.maxAge > 0 {
		ck.MaxAge = int(s.maxAge.Seconds())
	}
	c.SetCookie(ck)
	return nil
}

// Clear tells the browser to drop the cookie.
func (s *SessionCookie) Clear(c echo.Context) {
	ck := s.base()
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	c.SetCookie(ck)
}

func (s *SessionCookie) base() *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
