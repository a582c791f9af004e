package auth

import (
	"context"
	"sync/atomic"
	"time"

	"medpassport/internal/config"
	"medpassport/internal/errors"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "medpassport:revoked:"

// Revoker remembers logged-out token IDs until they would have expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NopRevoker is used when Redis is not configured. Logout then only
// discards the token client-side.
type NopRevoker struct{}

func (NopRevoker) Revoke(context.Context, string, time.Time) error { return nil }

func (NopRevoker) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisRevoker stores revoked token IDs with a TTL. When Redis cannot be
// reached it is bypassed and warns once.
type RedisRevoker struct {
	client *redis.Client
	logger *errors.Logger

	warnedUnavailable atomic.Bool
}

// NewRevoker returns a RedisRevoker when Redis is enabled, NopRevoker otherwise.
func NewRevoker(ctx context.Context, cfg config.RedisConfig, logger *errors.Logger) Revoker {
	if !cfg.Enabled {
		return NopRevoker{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, session revocation bypassed",
			"addr", cfg.Addr,
			"error", err.Error())
		_ = client.Close()
		return &RedisRevoker{logger: logger}
	}

	logger.Info("Session revocation backed by Redis", "addr", cfg.Addr)
	return &RedisRevoker{client: client, logger: logger}
}

// NewRedisRevoker wraps an existing client.
func NewRedisRevoker(client *redis.Client, logger *errors.Logger) *RedisRevoker {
	return &RedisRevoker{client: client, logger: logger}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if r.client == nil {
		r.warnUnavailableOnce(nil)
		return nil
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return nil
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.client == nil {
		return false, nil
	}

	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		r.warnUnavailableOnce(err)
		return false, nil
	}
	return n > 0, nil
}

// Close releases the Redis connection.
func (r *RedisRevoker) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisRevoker) warnUnavailableOnce(err error) {
	if r.logger == nil || !r.warnedUnavailable.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		r.logger.Warn("Redis unavailable, session revocation bypassed", "error", err.Error())
		return
	}
	r.logger.Warn("Redis unavailable, session revocation bypassed")
}
