package config

import (
	"fmt"
	"time"
)

// ==========================================================================
// 队列配置 - 统一的 broker 配置入口
// ==========================================================================

// QueueConfig 队列 broker 配置
type QueueConfig struct {
	Type string `mapstructure:"type"` // nats, nsq, memory

	NATS NATSConfig `mapstructure:"nats"` // NATS JetStream配置
	NSQ  NSQConfig  `mapstructure:"nsq"`  // NSQ配置
}

// NATSConfig NATS配置
type NATSConfig struct {
	URLs              []string        `mapstructure:"urls"`              // NATS服务器地址
	ClientID          string          `mapstructure:"clientId"`          // 客户端ID（连接名）
	Username          string          `mapstructure:"username"`          // 用户名
	Password          string          `mapstructure:"password"`          // 密码
	Token             string          `mapstructure:"token"`             // token 认证（与用户名密码二选一）
	MaxReconnects     int             `mapstructure:"maxReconnects"`     // 最大重连次数
	ReconnectWait     time.Duration   `mapstructure:"reconnectWait"`     // 重连等待时间
	ConnectionTimeout time.Duration   `mapstructure:"connectionTimeout"` // 连接超时
	JetStream         JetStreamConfig `mapstructure:"jetstream"`         // JetStream配置
}

// JetStreamConfig JetStream配置，每个队列一个 work-queue Stream
type JetStreamConfig struct {
	Storage        string        `mapstructure:"storage"`        // file, memory
	Replicas       int           `mapstructure:"replicas"`       // 副本数
	MaxAge         time.Duration `mapstructure:"maxAge"`         // 消息最大保留时间，0 表示不限
	AckWait        time.Duration `mapstructure:"ackWait"`        // 未确认消息的重投等待时间
	MaxDeliver     int           `mapstructure:"maxDeliver"`     // 最大投递次数，-1 表示不限
	FetchWait      time.Duration `mapstructure:"fetchWait"`      // try-take 的最长等待
	PublishTimeout time.Duration `mapstructure:"publishTimeout"` // 发布超时
}

// NSQConfig NSQ配置
type NSQConfig struct {
	NSQDAddr     string        `mapstructure:"nsqdAddr"`     // 发布与直连消费使用的 nsqd 地址
	Channel      string        `mapstructure:"channel"`      // 消费 channel，同一队列的所有实例共用以竞争消费
	LookupdAddrs []string      `mapstructure:"lookupdAddrs"` // 可选，消费端通过 lookupd 发现 nsqd
	AuthSecret   string        `mapstructure:"authSecret"`   // nsqd --auth-http-address 时使用
	MaxInFlight  int           `mapstructure:"maxInFlight"`  // 每个队列的在途消息上限
	MsgTimeout   time.Duration `mapstructure:"msgTimeout"`   // 未确认消息超时后由 nsqd 重投
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`  // 连接超时
	FetchWait    time.Duration `mapstructure:"fetchWait"`    // try-take 的最长等待
}

// SetDefaults 为 QueueConfig 设置默认值
func (c *QueueConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "memory"
	}

	switch c.Type {
	case "nats":
		if len(c.NATS.URLs) == 0 {
			c.NATS.URLs = []string{"nats://localhost:4222"}
		}
		if c.NATS.ClientID == "" {
			c.NATS.ClientID = "railflow"
		}
		if c.NATS.MaxReconnects == 0 {
			c.NATS.MaxReconnects = 10
		}
		if c.NATS.ReconnectWait == 0 {
			c.NATS.ReconnectWait = 2 * time.Second
		}
		if c.NATS.ConnectionTimeout == 0 {
			c.NATS.ConnectionTimeout = 10 * time.Second
		}
		if c.NATS.JetStream.Storage == "" {
			c.NATS.JetStream.Storage = "file"
		}
		if c.NATS.JetStream.Replicas == 0 {
			c.NATS.JetStream.Replicas = 1
		}
		if c.NATS.JetStream.AckWait == 0 {
			c.NATS.JetStream.AckWait = 30 * time.Second
		}
		if c.NATS.JetStream.MaxDeliver == 0 {
			c.NATS.JetStream.MaxDeliver = -1
		}
		if c.NATS.JetStream.FetchWait == 0 {
			c.NATS.JetStream.FetchWait = 200 * time.Millisecond
		}
		if c.NATS.JetStream.PublishTimeout == 0 {
			c.NATS.JetStream.PublishTimeout = 10 * time.Second
		}
	case "nsq":
		if c.NSQ.NSQDAddr == "" {
			c.NSQ.NSQDAddr = "localhost:4150"
		}
		if c.NSQ.Channel == "" {
			c.NSQ.Channel = "railflow"
		}
		if c.NSQ.MaxInFlight == 0 {
			c.NSQ.MaxInFlight = 1
		}
		if c.NSQ.MsgTimeout == 0 {
			c.NSQ.MsgTimeout = 60 * time.Second
		}
		if c.NSQ.DialTimeout == 0 {
			c.NSQ.DialTimeout = time.Second
		}
		if c.NSQ.FetchWait == 0 {
			c.NSQ.FetchWait = 200 * time.Millisecond
		}
	}
}

// Validate 验证 QueueConfig 配置
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "memory":
	case "nats":
		if len(c.NATS.URLs) == 0 {
			return fmt.Errorf("nats urls are required")
		}
		if c.NATS.JetStream.Storage != "file" && c.NATS.JetStream.Storage != "memory" {
			return fmt.Errorf("unsupported jetstream storage: %s", c.NATS.JetStream.Storage)
		}
		if c.NATS.JetStream.FetchWait <= 0 {
			return fmt.Errorf("jetstream fetch wait must be positive")
		}
	case "nsq":
		if c.NSQ.NSQDAddr == "" {
			return fmt.Errorf("nsqd addr is required")
		}
		if c.NSQ.MaxInFlight <= 0 {
			return fmt.Errorf("nsq maxInFlight must be positive")
		}
	case "":
		return fmt.Errorf("queue type is required")
	default:
		return fmt.Errorf("unsupported queue type: %s", c.Type)
	}
	return nil
}

var QueueConfigInstance = new(QueueConfig)
