package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisScoreCache keeps score records as JSON values in Redis.
type RedisScoreCache struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisScoreCache creates a Redis-backed cache. Records outlive their
// freshness window so the tier of the previous computation is still known;
// retention bounds how long an untouched user is kept.
func NewRedisScoreCache(client *redis.Client, retention time.Duration) *RedisScoreCache {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RedisScoreCache{client: client, retention: retention}
}

func redisKey(userID string) string {
	return "sw:score:" + userID
}

func (c *RedisScoreCache) Get(ctx context.Context, userID string) (*ScoreRecord, error) {
	data, err := c.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &Error{Kind: KindNotFound, Op: "redis get", Err: err}
	}
	if err != nil {
		return nil, Classify("redis get", err)
	}
	var rec ScoreRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, Classify("redis get", fmt.Errorf("decode record: %w", err))
	}
	return &rec, nil
}

func (c *RedisScoreCache) Put(ctx context.Context, rec *ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return Classify("redis set", c.client.Set(ctx, redisKey(rec.UserID), data, c.retention).Err())
}
