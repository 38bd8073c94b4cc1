package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a JSON value under prefix+senderID.
// Expiry is left to redis key TTLs, which Get and Put both reset.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type redisValue struct {
	record
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRedisStore builds a store over any redis client; ttl 0 disables expiry.
func NewRedisStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisStore) key(senderID string) string {
	return r.prefix + senderID
}

// Get loads the session of senderID and restarts its expiry.
func (r *RedisStore) Get(ctx context.Context, senderID string) (Session, bool, error) {
	var cmd *redis.StringCmd
	if r.ttl > 0 {
		cmd = r.rdb.GetEx(ctx, r.key(senderID), r.ttl)
	} else {
		cmd = r.rdb.Get(ctx, r.key(senderID))
	}
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("redis get session: %w", err)
	}
	var v redisValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return Session{}, false, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	st, err := decodeState(v.record)
	if err != nil {
		return Session{}, false, err
	}
	return Session{SenderID: senderID, State: st, UpdatedAt: v.UpdatedAt}, true, nil
}

// Put writes s and refreshes its expiry.
func (r *RedisStore) Put(ctx context.Context, s Session) error {
	rec, err := encodeState(s.State)
	if err != nil {
		return err
	}
	v := redisValue{record: rec, UpdatedAt: s.UpdatedAt}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = r.now()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(s.SenderID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes the session of senderID.
func (r *RedisStore) Delete(ctx context.Context, senderID string) error {
	if err := r.rdb.Del(ctx, r.key(senderID)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
