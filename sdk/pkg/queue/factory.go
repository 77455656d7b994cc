package queue

import (
	"fmt"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
)

// NewClient 按 queue.type 创建队列客户端
// memory 类型的客户端共享传入的 broker，broker 为空时创建独立实例
func NewClient(cfg *config.QueueConfig, broker *MemoryBroker) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("queue config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}

	var (
		client Client
		err    error
	)
	switch cfg.Type {
	case "nats":
		client, err = NewNATSClient(&cfg.NATS, logger.Logger)
	case "nsq":
		client, err = NewNSQClient(&cfg.NSQ, logger.Logger)
	case "memory":
		if broker == nil {
			broker = NewMemoryBroker()
		}
		client = NewMemoryClient(broker)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}

	logger.Info("Queue client created successfully, type: ", cfg.Type)
	return client, nil
}
