package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

func revokedKey(jti string) string {
	return fmt.Sprintf("denylist:access:%s", jti)
}

// * RevokeAccessToken заносит jti токена в denylist до истечения его срока
func (r *RedisRepo) RevokeAccessToken(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "storage.redis.RevokeAccessToken"

	if ttl <= 0 {
		return nil
	}

	if err := r.client.SetNX(ctx, revokedKey(jti), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * IsAccessTokenRevoked проверяет наличие jti в denylist
func (r *RedisRepo) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.redis.IsAccessTokenRevoked"

	n, err := r.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// * Close закрывает соединение с базой данных.
func (r *RedisRepo) Close() {
	r.client.Close()
}
