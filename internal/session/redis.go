package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ibimina/ingest-core/internal/model"
)

// RedisStore implements Store over a networked key-value cache. The backing
// store's native key expiry enforces the TTL, so stale keys disappear without
// explicit cleanup.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	ownClient bool
}

func newRedis(opts Options) *RedisStore {
	s := &RedisStore{
		client:    opts.Redis,
		namespace: opts.Namespace,
		ttl:       opts.ttl(),
	}
	if s.namespace == "" {
		s.namespace = DefaultNamespace
	}
	if s.client == nil {
		s.client = redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		s.ownClient = true
	}
	return s
}

func (s *RedisStore) key(sessionID string) string {
	return s.namespace + ":" + sessionID
}

func (s *RedisStore) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*model.AgentSessionRecord, error) {
	key := s.key(sessionID)
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "redis: get session %s", sessionID)
	}

	var r model.AgentSessionRecord
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		// Corrupt payloads read as absent.
		s.cleanupStale(key, "corrupt payload")
		return nil, nil
	}

	// The native TTL should have removed an expired key already; checking
	// again defends against clock skew between this process and the store.
	if r.Expired(time.Now().UTC()) {
		s.cleanupStale(key, "expired")
		return nil, nil
	}

	return &r, nil
}

func (s *RedisStore) cleanupStale(key, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.Del(ctx, key).Err(); err != nil {
			zap.L().Warn("session: stale cleanup failed",
				zap.String("key", key),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}()
}

func (s *RedisStore) Save(ctx context.Context, record *model.AgentSessionRecord) (*model.AgentSessionRecord, error) {
	now := time.Now().UTC()

	persisted := *record
	persisted.UpdatedAt = now
	if persisted.CreatedAt.IsZero() {
		persisted.CreatedAt = now
	}
	if persisted.LastInteractionAt.IsZero() {
		persisted.LastInteractionAt = now
	}
	if s.ttl > 0 {
		persisted.ExpiresAt = now.Add(s.ttl)
	}
	if persisted.ExpiresAt.IsZero() {
		return nil, eris.Errorf("session: save %s: expires_at required without a configured TTL", record.ID)
	}

	payload, err := json.Marshal(&persisted)
	if err != nil {
		return nil, eris.Wrap(err, "redis: marshal session")
	}

	// Expiry rides on the key itself. The floor of 1ms keeps SET legal for a
	// record that is already on the edge of expiring.
	ttl := time.Until(persisted.ExpiresAt)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.client.Set(ctx, s.key(persisted.ID), payload, ttl).Err(); err != nil {
		return nil, eris.Wrapf(err, "redis: save session %s", record.ID)
	}

	return &persisted, nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string, expiresAt *time.Time) error {
	key := s.key(sessionID)

	var ttl time.Duration
	switch {
	case expiresAt != nil:
		ttl = time.Until(*expiresAt)
	case s.ttl > 0:
		ttl = s.ttl
	default:
		// No TTL anywhere: rewrite the payload to move last_interaction_at.
		record, err := s.Get(ctx, sessionID)
		if err != nil || record == nil {
			return err
		}
		record.LastInteractionAt = time.Now().UTC()
		_, err = s.Save(ctx, record)
		return err
	}

	if ttl <= 0 {
		return nil
	}
	// Fast path: extend the key's native expiry without touching the payload.
	return eris.Wrapf(s.client.PExpire(ctx, key, ttl).Err(), "redis: touch session %s", sessionID)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return eris.Wrapf(s.client.Del(ctx, s.key(sessionID)).Err(), "redis: delete session %s", sessionID)
}
