// Package cache stores rendered exports keyed by content hash, in Redis when
// configured and in process memory otherwise.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type Config struct {
	// Addr is host:port of the Redis server. Empty selects the memory cache.
	Addr     string
	Password string
	DB       int
	// MaxEntries bounds the memory cache.
	MaxEntries int
}

// New connects to Redis when cfg.Addr is set. An unreachable server falls
// back to memory so exports keep working uncached across instances.
func New(ctx context.Context, cfg Config, logger *zap.Logger) Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		logger.Info("export cache: memory")
		return NewMemory(cfg.MaxEntries)
	}
	c, err := NewRedis(ctx, cfg)
	if err != nil {
		logger.Warn("export cache: redis unavailable, using memory", zap.String("addr", cfg.Addr), zap.Error(err))
		return NewMemory(cfg.MaxEntries)
	}
	logger.Info("export cache: redis", zap.String("addr", cfg.Addr))
	return c
}

type Redis struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ""), nil
}

func NewRedisWithClient(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "canvas:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
