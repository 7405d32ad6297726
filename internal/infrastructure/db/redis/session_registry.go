package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/session-security/internal/core/domain"
	"github.com/99minutos/session-security/internal/core/ports"
	"github.com/99minutos/session-security/internal/core/service"
)

const defaultKeyPrefix = "session:"

// registerScript swaps the identifier's live session for a new one in a
// single atomic step and returns {displaced id, displaced payload}, or nil.
//
// KEYS[1]=session key, KEYS[2]=identifier key
// ARGV[1]=session key prefix, ARGV[2]=session id, ARGV[3]=identifier,
// ARGV[4]=payload, ARGV[5]=ttl in ms (0 = none)
var registerScript = redis.NewScript(`
local old = redis.call('GET', KEYS[2])
local oldData = false
if old then
  oldData = redis.call('HGET', ARGV[1] .. old, 'data')
  redis.call('DEL', ARGV[1] .. old)
end
redis.call('HSET', KEYS[1], 'identifier', ARGV[3], 'data', ARGV[4])
redis.call('SET', KEYS[2], ARGV[2])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
if old then
  return {old, oldData or ''}
end
return false
`)

// invalidateScript removes one session and its identifier pointer when the
// pointer still refers to it. A session hash missing its identifier field is
// dropped on its own.
//
// KEYS[1]=session key; ARGV[1]=identifier key prefix, ARGV[2]=session id
var invalidateScript = redis.NewScript(`
local ident = redis.call('HGET', KEYS[1], 'identifier')
if not ident then
  redis.call('DEL', KEYS[1])
  return 0
end
redis.call('DEL', KEYS[1])
local ukey = ARGV[1] .. ident
if redis.call('GET', ukey) == ARGV[2] then
  redis.call('DEL', ukey)
end
return 1
`)

// evictScript removes whatever session the identifier currently holds.
//
// KEYS[1]=identifier key; ARGV[1]=session key prefix
var evictScript = redis.NewScript(`
local id = redis.call('GET', KEYS[1])
if not id then
  return 0
end
redis.call('DEL', ARGV[1] .. id)
redis.call('DEL', KEYS[1])
return 1
`)

// RegistryOptions configures a SessionRegistry. Zero values fall back to
// defaults.
type RegistryOptions struct {
	KeyPrefix  string
	Expiry     domain.SessionExpiry
	NewID      func() (string, error)
	Now        func() time.Time
	OnDisplace ports.DisplaceFunc
	Log        zerolog.Logger
}

// SessionRegistry implements ports.SessionRegistry on Redis so sessions are
// shared by every API replica. Idle timeout is enforced with key TTLs that
// are refreshed on each Resolve; max lifetime is checked on read.
type SessionRegistry struct {
	client     *redis.Client
	prefix     string
	expiry     domain.SessionExpiry
	newID      func() (string, error)
	now        func() time.Time
	onDisplace ports.DisplaceFunc
	log        zerolog.Logger
}

func NewSessionRegistry(client *redis.Client, opts RegistryOptions) *SessionRegistry {
	r := &SessionRegistry{
		client:     client,
		prefix:     opts.KeyPrefix,
		expiry:     opts.Expiry,
		newID:      opts.NewID,
		now:        opts.Now,
		onDisplace: opts.OnDisplace,
		log:        opts.Log,
	}
	if r.prefix == "" {
		r.prefix = defaultKeyPrefix
	}
	if r.newID == nil {
		r.newID = service.NewSessionID
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

type storedHandle struct {
	Identifier string    `json:"identifier"`
	Role       string    `json:"role"`
	IssuedAt   time.Time `json:"issued_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *SessionRegistry) Register(ctx context.Context, principal domain.Principal) (*domain.SessionHandle, error) {
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := r.now()
	payload, err := json.Marshal(storedHandle{
		Identifier: principal.Identifier,
		Role:       principal.Role.Tag(),
		IssuedAt:   principal.IssuedAt,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	keys := []string{r.sessionKey(id), r.identifierKey(principal.Identifier)}
	old, err := registerScript.Run(ctx, r.client, keys,
		r.prefix, id, principal.Identifier, payload, r.ttl().Milliseconds(),
	).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis register session: %w", err)
	}

	if len(old) == 2 && r.onDisplace != nil {
		if displaced, decErr := decodeHandle(old[0], old[1]); decErr == nil {
			r.onDisplace(*displaced)
		}
	}

	return &domain.SessionHandle{
		ID:         id,
		Identifier: principal.Identifier,
		Principal:  principal,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

func (r *SessionRegistry) Resolve(ctx context.Context, sessionID string) (*domain.SessionHandle, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}
	key := r.sessionKey(sessionID)
	data, err := r.client.HGet(ctx, key, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis resolve session: %w", err)
	}

	// An entry that no longer decodes is treated as a dead session so the
	// caller is sent to login instead of an error page on every request.
	h, err := decodeHandle(sessionID, data)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable session")
		if err := r.Invalidate(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, domain.ErrSessionNotFound
	}

	now := r.now()
	h.LastSeenAt = now
	if r.expiry.MaxLifetime > 0 && now.Sub(h.CreatedAt) > r.expiry.MaxLifetime {
		if err := r.Invalidate(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, domain.ErrSessionNotFound
	}

	if ttl := r.ttl(); ttl > 0 {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.PExpire(ctx, key, ttl)
			pipe.PExpire(ctx, r.identifierKey(h.Identifier), ttl)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("redis refresh session: %w", err)
		}
	}
	return h, nil
}

func (r *SessionRegistry) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := invalidateScript.Run(ctx, r.client, []string{r.sessionKey(sessionID)}, r.identifierPrefix(), sessionID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis invalidate session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) InvalidateAllForIdentifier(ctx context.Context, identifier string) (int, error) {
	n, err := evictScript.Run(ctx, r.client, []string{r.identifierKey(identifier)}, r.prefix).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis evict sessions: %w", err)
	}
	return n, nil
}

// ttl is the key expiry applied on write and refreshed on read.
func (r *SessionRegistry) ttl() time.Duration {
	if r.expiry.IdleTimeout > 0 {
		return r.expiry.IdleTimeout
	}
	return r.expiry.MaxLifetime
}

func (r *SessionRegistry) sessionKey(id string) string { return r.prefix + id }

func (r *SessionRegistry) identifierPrefix() string { return r.prefix + "user:" }

func (r *SessionRegistry) identifierKey(identifier string) string {
	return r.identifierPrefix() + identifier
}

func decodeHandle(id, data string) (*domain.SessionHandle, error) {
	var sh storedHandle
	if err := json.Unmarshal([]byte(data), &sh); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	role, err := domain.ParseRole(sh.Role)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.SessionHandle{
		ID:         id,
		Identifier: sh.Identifier,
		Principal: domain.Principal{
			Identifier: sh.Identifier,
			Role:       role,
			IssuedAt:   sh.IssuedAt,
		},
		CreatedAt:  sh.CreatedAt,
		LastSeenAt: sh.CreatedAt,
	}, nil
}
