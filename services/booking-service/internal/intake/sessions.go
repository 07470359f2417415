package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps per-owner intake drafts. A session is small, short-lived
// state keyed by the chat identity, never global process state.
type SessionStore interface {
	Get(ctx context.Context, ownerID int64) (*Draft, error)
	Put(ctx context.Context, ownerID int64, draft *Draft) error
	Delete(ctx context.Context, ownerID int64) error
}

// RedisSessions stores drafts as JSON under a per-owner key with a TTL, so
// abandoned conversations expire on their own.
type RedisSessions struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessions(rdb *redis.Client, ttl time.Duration) *RedisSessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisSessions{rdb: rdb, ttl: ttl}
}

func sessionKey(ownerID int64) string {
	return fmt.Sprintf("intake:%d", ownerID)
}

func (s *RedisSessions) Get(ctx context.Context, ownerID int64) (*Draft, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load intake session: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		// Corrupt session data is unrecoverable; treat as no session.
		return nil, nil
	}
	return &d, nil
}

func (s *RedisSessions) Put(ctx context.Context, ownerID int64, draft *Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode intake session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(ownerID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store intake session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Delete(ctx context.Context, ownerID int64) error {
	if err := s.rdb.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("delete intake session: %w", err)
	}
	return nil
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
