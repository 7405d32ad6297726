package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is the authority granted to an account. The string value is the tag
// matched by access rules.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidSignup   = errors.New("invalid signup")
	ErrForbidden       = errors.New("access forbidden")
)

// Tag returns the stable string used for policy matching.
func (r Role) Tag() string { return string(r) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole accepts a role tag in any case, with or without a "ROLE_" prefix.
func ParseRole(s string) (Role, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	tag = strings.TrimPrefix(tag, "ROLE_")
	r := Role(tag)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// CredentialRecord is an account as stored by the account store. The secret
// hash is opaque to everything except the credential hasher.
type CredentialRecord struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	SecretHash string    `json:"-"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Principal is the authenticated identity attached to a session.
type Principal struct {
	Identifier string    `json:"identifier"`
	Role       Role      `json:"role"`
	IssuedAt   time.Time `json:"issued_at"`
}

// HasRole reports whether the principal holds any of roles.
func (p *Principal) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
