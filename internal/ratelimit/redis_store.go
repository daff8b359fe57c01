package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrContention is returned when an optimistic Redis transaction keeps losing
// to concurrent writers of the same key.
var ErrContention = errors.New("ratelimit: too much contention on key")

const redisTxRetries = 5

// RedisStore shares counters across instances. Entries carry their own
// expiry as a Redis TTL, so Sweep has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Update(ctx context.Context, key string, fn func(cur *Entry) *Entry) error {
	k := s.prefix + key

	txf := func(tx *redis.Tx) error {
		var cur *Entry

		raw, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get: %w", err)
		default:
			var e Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			cur = &e
		}

		next := fn(cur)

		var payload []byte
		if next != nil {
			payload, err = json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, k)
				return nil
			}
			pipe.Set(ctx, k, payload, 0)
			if !next.ExpiresAt.IsZero() {
				pipe.ExpireAt(ctx, k, next.ExpiresAt)
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Sweep(ctx context.Context, prefix string, drop func(Entry) bool) (int, error) {
	return 0, nil
}
