package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "taskmaster:slot:"

// RedisSlot keeps each key as a plain Redis string without expiry.
type RedisSlot struct {
	rdb *redis.Client
}

// NewRedisSlot returns a RedisSlot over an existing client.
func NewRedisSlot(rdb *redis.Client) *RedisSlot {
	return &RedisSlot{rdb: rdb}
}

// DialRedis connects and pings within timeout.
func DialRedis(addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Get returns ErrSlotEmpty on miss.
func (s *RedisSlot) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *RedisSlot) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}

func (s *RedisSlot) Close() error {
	return s.rdb.Close()
}
