// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only if it still holds our owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string // Redis server address (host:port)
	Password  string // Redis password (optional)
	DB        int    // Redis database number
	KeyPrefix string // Prefix applied to every lock name
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(cfg RedisConfig, logger zerolog.Logger) (*RedisLocker, error) {
	client, err := DialRedis(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis lock backend")

	return NewRedisLockerFromClient(client, cfg.KeyPrefix, logger), nil
}

// DialRedis opens a client and pings it. The event publisher shares the
// returned client with the locker when both use Redis.
func DialRedis(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(client *redis.Client, prefix string, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, logger: logger}
}

func (l *RedisLocker) key(name string) string { return l.prefix + name }

func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (ports.LockToken, bool, error) {
	if ttl <= 0 {
		return ports.LockToken{}, false, ErrInvalidTTL
	}
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(name), owner, ttl).Result()
	if err != nil {
		return ports.LockToken{}, false, fmt.Errorf("redis lock %s: %w", name, err)
	}
	if !ok {
		return ports.LockToken{}, false, nil
	}
	return ports.LockToken{Name: name, Owner: owner, ExpiresAt: time.Now().Add(ttl)}, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, tok ports.LockToken) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key(tok.Name)}, tok.Owner).Int()
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", tok.Name, err)
	}
	if n == 0 {
		l.logger.Debug().Str("lock_key", tok.Name).Msg("lock already lapsed or taken over before release")
	}
	return nil
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

var _ ports.Locker = (*RedisLocker)(nil)
