package config

import (
	"fmt"
	"time"
)

// Pipeline 各 stage 共享的运行参数
type Pipeline struct {
	ServiceName string        `mapstructure:"serviceName"` // 服务名，决定运行哪个 stage
	TrainID     string        `mapstructure:"trainId"`     // 聚合记录中的车次号
	Backoff     time.Duration `mapstructure:"backoff"`     // 空轮询或失败后的退避时间

	Faults    FaultConfig     `mapstructure:"faults"`    // 故障注入
	RateLimit RateLimitConfig `mapstructure:"rateLimit"` // /trigger 限流
}

// FaultConfig 每个步骤独立的故障注入概率（0~1）
type FaultConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Process    float64 `mapstructure:"process"`    // 消费后、发布前的处理错误
	Publish    float64 `mapstructure:"publish"`    // 发布失败
	Ack        float64 `mapstructure:"ack"`        // 确认失败
	CacheWrite float64 `mapstructure:"cacheWrite"` // 缓存写入失败
	HTTPAccept float64 `mapstructure:"httpAccept"` // /trigger 拒绝
}

// RateLimitConfig 流量控制配置
type RateLimitConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	RatePerSecond float64 `mapstructure:"ratePerSecond"`
	BurstSize     int     `mapstructure:"burstSize"`
}

// LoadGen 压测触发器配置
type LoadGen struct {
	Targets  []string      `mapstructure:"targets"`  // 各 producer 的 /trigger 地址
	Schedule string        `mapstructure:"schedule"` // cron 表达式
	Timeout  time.Duration `mapstructure:"timeout"`  // 单次请求超时
}

var PipelineConfig = new(Pipeline)

var LoadGenConfig = new(LoadGen)

// SetDefaults 为 Pipeline 设置默认值
func (p *Pipeline) SetDefaults() {
	if p.TrainID == "" {
		p.TrainID = "123"
	}
	if p.Backoff == 0 {
		p.Backoff = 5 * time.Second
	}
	if p.RateLimit.Enabled {
		if p.RateLimit.RatePerSecond == 0 {
			p.RateLimit.RatePerSecond = 50
		}
		if p.RateLimit.BurstSize == 0 {
			p.RateLimit.BurstSize = 10
		}
	}
}

// Validate 验证 Pipeline 配置
func (p *Pipeline) Validate() error {
	if p.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if p.Backoff <= 0 {
		return fmt.Errorf("backoff must be positive")
	}
	probs := map[string]float64{
		"process":    p.Faults.Process,
		"publish":    p.Faults.Publish,
		"ack":        p.Faults.Ack,
		"cacheWrite": p.Faults.CacheWrite,
		"httpAccept": p.Faults.HTTPAccept,
	}
	for step, prob := range probs {
		if prob < 0 || prob > 1 {
			return fmt.Errorf("fault probability for %s must be within [0,1], got %v", step, prob)
		}
	}
	if p.RateLimit.Enabled && p.RateLimit.RatePerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// SetDefaults 为 LoadGen 设置默认值
func (l *LoadGen) SetDefaults() {
	if l.Schedule == "" {
		l.Schedule = "@every 2s"
	}
	if l.Timeout == 0 {
		l.Timeout = 5 * time.Second
	}
	if len(l.Targets) == 0 {
		l.Targets = []string{
			"http://train-service:5000/trigger",
			"http://ticket-service:5000/trigger",
			"http://passenger-service:5000/trigger",
			"http://train-management-service:5000/trigger",
		}
	}
}
