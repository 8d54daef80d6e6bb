package claimmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "claimmeta:"

// RedisStore keeps metadata in Redis with a TTL. Claims themselves never
// expire; once the metadata ages out the claim page just renders without
// usernames and match data.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, hash common.Hash, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal claim metadata: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+hash.Hex(), payload, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, hash common.Hash) (*Record, error) {
	raw, err := s.client.Get(ctx, keyPrefix+hash.Hex()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal claim metadata: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
