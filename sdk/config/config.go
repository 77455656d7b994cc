package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 RAILFLOW_QUEUE_TYPE、RAILFLOW_PIPELINE_BACKOFF
const EnvPrefix = "RAILFLOW"

// Config 顶层配置结构
type Config struct {
	Application *Application `mapstructure:"application"`
	HTTP        *HTTPConfig  `mapstructure:"http" json:"http"`
	Logger      *Logger      `mapstructure:"logger"`
	Cache       *Cache       `mapstructure:"cache"`
	Queue       *QueueConfig `mapstructure:"queue"`
	Pipeline    *Pipeline    `mapstructure:"pipeline"`
	LoadGen     *LoadGen     `mapstructure:"loadgen"`
}

var AppConfig = &Config{
	Application: ApplicationConfig,
	HTTP:        HttpConfig,
	Logger:      LoggerConfig,
	Cache:       CacheConfig,
	Queue:       QueueConfigInstance,
	Pipeline:    PipelineConfig,
	LoadGen:     LoadGenConfig,
}

// 原 docker-compose 部署使用的无前缀环境变量，保持兼容
var legacyEnv = map[string]string{
	"pipeline.servicename":    "SERVICE_NAME",
	"cache.redis.host":        "REDIS_HOST",
	"cache.redis.port":        "REDIS_PORT",
	"cache.redis.password":    "REDIS_PASSWORD",
	"queue.nats.username":     "BROKER_USERNAME",
	"queue.nats.password":     "BROKER_PASSWORD",
	"queue.nsq.nsqdaddr":      "NSQD_ADDR",
	"pipeline.backoff":        "BACKOFF_INTERVAL",
	"pipeline.faults.enabled": "FAULTS_ENABLED",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// setViperDefaults 注册默认值，同时让 AutomaticEnv 能识别这些键
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("application.mode", "dev")
	v.SetDefault("application.name", "railflow")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.readtimeout", 10)
	v.SetDefault("http.writetimeout", 10)
	v.SetDefault("http.idletimeout", 60)
	v.SetDefault("http.maxheaderbytes", 0)

	v.SetDefault("logger.path", "")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.stdout", true)
	v.SetDefault("logger.maxsize", 50)
	v.SetDefault("logger.errormaxage", 14)
	v.SetDefault("logger.infomaxage", 3)
	v.SetDefault("logger.maxbackups", 20)

	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.host", "")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.poolsize", 0)

	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.nats.urls", []string{})
	v.SetDefault("queue.nats.clientid", "")
	v.SetDefault("queue.nats.username", "")
	v.SetDefault("queue.nats.password", "")
	v.SetDefault("queue.nats.token", "")
	// 以下为 0 时由 QueueConfig.SetDefaults 按队列类型补齐
	v.SetDefault("queue.nats.maxreconnects", 0)
	v.SetDefault("queue.nats.reconnectwait", 0)
	v.SetDefault("queue.nats.connectiontimeout", 0)
	v.SetDefault("queue.nats.jetstream.storage", "")
	v.SetDefault("queue.nats.jetstream.replicas", 0)
	v.SetDefault("queue.nats.jetstream.maxage", 0)
	v.SetDefault("queue.nats.jetstream.ackwait", 0)
	v.SetDefault("queue.nats.jetstream.maxdeliver", 0)
	v.SetDefault("queue.nats.jetstream.fetchwait", 0)
	v.SetDefault("queue.nats.jetstream.publishtimeout", 0)
	v.SetDefault("queue.nsq.nsqdaddr", "")
	v.SetDefault("queue.nsq.channel", "")
	v.SetDefault("queue.nsq.lookupdaddrs", []string{})
	v.SetDefault("queue.nsq.authsecret", "")
	v.SetDefault("queue.nsq.maxinflight", 0)
	v.SetDefault("queue.nsq.msgtimeout", 0)
	v.SetDefault("queue.nsq.dialtimeout", 0)
	v.SetDefault("queue.nsq.fetchwait", 0)

	v.SetDefault("pipeline.servicename", "")
	v.SetDefault("pipeline.trainid", "123")
	v.SetDefault("pipeline.backoff", "5s")
	v.SetDefault("pipeline.faults.enabled", false)
	v.SetDefault("pipeline.faults.process", 0.12)
	v.SetDefault("pipeline.faults.publish", 0.05)
	v.SetDefault("pipeline.faults.ack", 0.001)
	v.SetDefault("pipeline.faults.cachewrite", 0.10)
	v.SetDefault("pipeline.faults.httpaccept", 0.10)
	v.SetDefault("pipeline.ratelimit.enabled", false)
	v.SetDefault("pipeline.ratelimit.ratepersecond", 0)
	v.SetDefault("pipeline.ratelimit.burstsize", 0)

	v.SetDefault("loadgen.targets", []string{})
	v.SetDefault("loadgen.schedule", "@every 2s")
	v.SetDefault("loadgen.timeout", "5s")
}

// Load 读取配置文件（可为空）和环境变量，返回独立的配置实例
func Load(configYml string) (*Config, error) {
	v := newViper()
	if configYml != "" {
		v.SetConfigFile(configYml)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// SetDefaults 补齐各段默认值
func (c *Config) SetDefaults() {
	if c.Application == nil {
		c.Application = &Application{Name: "railflow"}
	}
	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.Logger == nil {
		c.Logger = &Logger{Level: "info", Stdout: true}
	}
	if c.Cache == nil {
		c.Cache = &Cache{}
	}
	if c.Queue == nil {
		c.Queue = &QueueConfig{}
	}
	if c.Pipeline == nil {
		c.Pipeline = &Pipeline{}
	}
	if c.LoadGen == nil {
		c.LoadGen = &LoadGen{}
	}
	c.Queue.SetDefaults()
	c.Pipeline.SetDefaults()
	c.LoadGen.SetDefaults()
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Setup 加载配置并映射到全局 AppConfig
func Setup(configYml string) error {
	cfg, err := Load(configYml)
	if err != nil {
		return err
	}

	*ApplicationConfig = *cfg.Application
	*HttpConfig = *cfg.HTTP
	*LoggerConfig = *cfg.Logger
	*CacheConfig = *cfg.Cache
	*QueueConfigInstance = *cfg.Queue
	*PipelineConfig = *cfg.Pipeline
	*LoadGenConfig = *cfg.LoadGen
	return nil
}
