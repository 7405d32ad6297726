package service

import (
	"encoding/base64"
	"errors"

	"github.com/gorilla/securecookie"
)

const sessionIDBytes = 32

var errRandomSource = errors.New("random source unavailable")

// NewSessionID returns an unguessable, URL-safe session identifier.
func NewSessionID() (string, error) {
	key := securecookie.GenerateRandomKey(sessionIDBytes)
	if key == nil {
		return "", errRandomSource
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
