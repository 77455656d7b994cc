package config

import (
	"fmt"

	"github.com/go-redis/redis/v9"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
)

type Cache struct {
	Redis *RedisConnectOptions `mapstructure:"redis"`
}

// RedisConnectOptions Redis配置
type RedisConnectOptions struct {
	Addr     string `mapstructure:"addr"`     // host:port，为空时由 Host/Port 拼接
	Host     string `mapstructure:"host"`     // 兼容原部署的 REDIS_HOST
	Port     int    `mapstructure:"port"`     // 兼容原部署的 REDIS_PORT
	Username string `mapstructure:"username"` // Redis 6 ACL 用户名
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"poolSize"`
}

var CacheConfig = new(Cache)

var _redis *redis.Client

// GetRedisClient 获取已创建的全局 redis 客户端
func GetRedisClient() *redis.Client {
	return _redis
}

// GetRedisOptions 转换为 go-redis 选项
func (e RedisConnectOptions) GetRedisOptions() (*redis.Options, error) {
	addr := e.Addr
	if addr == "" {
		if e.Host == "" {
			return nil, fmt.Errorf("redis addr or host is required")
		}
		port := e.Port
		if port == 0 {
			port = 6379
		}
		addr = fmt.Sprintf("%s:%d", e.Host, port)
	}
	return &redis.Options{
		Addr:     addr,
		Username: e.Username,
		Password: e.Password,
		DB:       e.DB,
		PoolSize: e.PoolSize,
	}, nil
}

// Setup 构造cache 顺序 redis > memory
// 不在这里 Ping，Redis 暂时不可达时由写缓存步骤失败并按周期重试
func (e Cache) Setup() (cache.LastStateCache, error) {
	if e.Redis != nil && (e.Redis.Addr != "" || e.Redis.Host != "") {
		options, err := e.Redis.GetRedisOptions()
		if err != nil {
			return nil, err
		}
		client := GetRedisClient()
		if client == nil {
			client = redis.NewClient(options)
			_redis = client
		}
		r, err := cache.WrapRedis(client)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return cache.NewMemory(), nil
}
