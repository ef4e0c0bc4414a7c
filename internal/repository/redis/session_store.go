// Package redis provides the Redis-backed session store for deployments
// that do not run ScyllaDB. Expiry is enforced twice: the expires_at
// field carries the sliding deadline, and a PEXPIREAT on the key lets
// Redis reclaim dead rows without a sweeper.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"repairshop-api/internal/client"
	"repairshop-api/internal/session"
)

const (
	tokenKeyPrefix     = "session:token:"
	idKeyPrefix        = "session:id:"
	principalKeyPrefix = "session:principal:"
)

// touchScript atomically validates and extends a session. It runs inside
// Redis so a concurrent touch or expiry cannot interleave. ARGV carries
// the current time plus the candidate expiry per kind; the script picks
// the one matching the stored kind. All times are unix nanoseconds.
const touchScript = `
local expires = redis.call('HGET', KEYS[1], 'expires_at')
if not expires then return false end
local now = tonumber(ARGV[1])
if tonumber(expires) < now then
  redis.call('DEL', KEYS[1])
  return false
end
local kind = redis.call('HGET', KEYS[1], 'kind')
local new_expiry = ARGV[3]
if kind == 'admin' then new_expiry = ARGV[2] end
redis.call('HSET', KEYS[1], 'expires_at', new_expiry, 'last_activity_at', ARGV[1])
redis.call('PEXPIREAT', KEYS[1], math.floor(tonumber(new_expiry) / 1000000))
return redis.call('HGETALL', KEYS[1])
`

type SessionStore struct {
	rdb *client.RedisClient
}

func NewSessionStore(rdb *client.RedisClient) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func (r *SessionStore) Insert(ctx context.Context, s *session.Session) error {
	key := tokenKeyPrefix + s.Token

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"session_id", s.ID,
		"kind", string(s.Kind),
		"principal_id", s.PrincipalID,
		"token", s.Token,
		"created_at", strconv.FormatInt(s.CreatedAt.UnixNano(), 10),
		"expires_at", strconv.FormatInt(s.ExpiresAt.UnixNano(), 10),
		"last_activity_at", strconv.FormatInt(s.LastActivityAt.UnixNano(), 10),
	)
	pipe.PExpireAt(ctx, key, s.ExpiresAt)
	pipe.Set(ctx, idKeyPrefix+s.ID, s.Token, 0)
	if s.PrincipalID != "" {
		pipe.SAdd(ctx, principalKeyPrefix+s.PrincipalID, s.Token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionStore) TouchIfValid(ctx context.Context, token string, now time.Time, policy session.LifetimePolicy) (*session.Session, error) {
	adminExpiry := now.Add(policy.AdminTTL).UnixNano()
	employeeExpiry := now.Add(policy.EmployeeTTL).UnixNano()

	res, err := r.rdb.Eval(ctx, touchScript,
		[]string{tokenKeyPrefix + token},
		now.UnixNano(), adminExpiry, employeeExpiry)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	fields, ok := res.([]interface{})
	if !ok || len(fields) == 0 {
		return nil, session.ErrNotFound
	}

	return decodeHash(fields)
}

func (r *SessionStore) DeleteByToken(ctx context.Context, token string) error {
	key := tokenKeyPrefix + token

	vals, err := r.rdb.Client.HMGet(ctx, key, "session_id", "principal_id").Result()
	if err != nil {
		return fmt.Errorf("failed to read session for delete: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if id, ok := vals[0].(string); ok && id != "" {
		pipe.Del(ctx, idKeyPrefix+id)
	}
	if pid, ok := vals[1].(string); ok && pid != "" {
		pipe.SRem(ctx, principalKeyPrefix+pid, token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionStore) DeleteByID(ctx context.Context, id string) error {
	token, err := r.rdb.Client.Get(ctx, idKeyPrefix+id).Result()
	if err != nil {
		return session.ErrNotFound
	}
	return r.DeleteByToken(ctx, token)
}

func (r *SessionStore) DeleteForPrincipal(ctx context.Context, principalID string) (int, error) {
	if principalID == "" {
		return 0, nil
	}

	tokens, err := r.rdb.SMembers(ctx, principalKeyPrefix+principalID)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions for principal: %w", err)
	}

	removed := 0
	for _, token := range tokens {
		// Members whose key already expired are just index debris.
		exists, err := r.rdb.Exists(ctx, tokenKeyPrefix+token)
		if err != nil {
			return removed, err
		}
		if err := r.DeleteByToken(ctx, token); err != nil {
			return removed, err
		}
		if exists {
			removed++
		}
	}
	_ = r.rdb.Del(ctx, principalKeyPrefix+principalID)
	return removed, nil
}

// DeleteExpired is a no-op: Redis evicts dead session keys through the
// PEXPIREAT set on insert and touch. Index debris is cleaned lazily.
func (r *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func decodeHash(fields []interface{}) (*session.Session, error) {
	m := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		k, kok := fields[i].(string)
		v, vok := fields[i+1].(string)
		if kok && vok {
			m[k] = v
		}
	}

	s := &session.Session{
		ID:          m["session_id"],
		Kind:        session.Kind(m["kind"]),
		PrincipalID: m["principal_id"],
		Token:       m["token"],
	}
	for _, f := range []struct {
		field string
		dst   *time.Time
	}{
		{"created_at", &s.CreatedAt},
		{"expires_at", &s.ExpiresAt},
		{"last_activity_at", &s.LastActivityAt},
	} {
		ns, err := strconv.ParseInt(m[f.field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt session field %s: %w", f.field, err)
		}
		*f.dst = time.Unix(0, ns).UTC()
	}
	return s, nil
}
