package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v9"
)

// Redis cache implement
type Redis struct {
	client *redis.Client
}

// NewRedis redis模式，构造时 Ping 一次确认连通
func NewRedis(client *redis.Client) (*Redis, error) {
	r, err := WrapRedis(client)
	if err != nil {
		return nil, err
	}
	if err := r.Ping(context.TODO()); err != nil {
		return nil, err
	}
	return r, nil
}

// WrapRedis 不检查连通性，Redis 不可达时由 SetLastValue 返回错误
func WrapRedis(client *redis.Client) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Redis{client: client}, nil
}

func (*Redis) String() string {
	return "redis"
}

// Ping 检查连通性
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// SetLastValue 覆盖写入，不设置过期时间
func (r *Redis) SetLastValue(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetClient 暴露底层客户端
func (r *Redis) GetClient() *redis.Client {
	return r.client
}

func (r *Redis) Close() error {
	return r.client.Close()
}
