package queue

import (
	"context"
	"errors"
)

// 流水线使用的持久化队列
const (
	ScheduleQueue        = "ScheduleQueue"
	TicketQueue          = "TicketQueue"
	PassengerQueue       = "PassengerQueue"
	TrainManagementQueue = "TrainManagementQueue"
	AggregationQueue     = "AggregationQueue"
	NotificationQueue    = "NotificationQueue"
)

// AllQueues 全部队列，单进程模式下一次声明
var AllQueues = []string{
	ScheduleQueue,
	TicketQueue,
	PassengerQueue,
	TrainManagementQueue,
	AggregationQueue,
	NotificationQueue,
}

var (
	ErrClosed           = errors.New("queue client is closed")
	ErrNotConnected     = errors.New("queue client is not connected")
	ErrQueueNotDeclared = errors.New("queue is not declared")
	ErrUnknownDelivery  = errors.New("unknown or already settled delivery")
	ErrUnavailable      = errors.New("broker unavailable")
)

// Delivery 一次 TryTake 取得的消息，在 Ack/Nak 之前只属于取得它的客户端
type Delivery struct {
	Queue       string
	ID          string
	Body        []byte
	Redelivered bool

	handle interface{} // 各实现自己的消息句柄
}

// Client 队列客户端接口，每个 stage 实例持有一个
type Client interface {
	// 连接 broker
	Connect(ctx context.Context) error

	// 断开后重新连接，未确认的消息交还 broker 重投
	Reconnect(ctx context.Context) error

	// 声明（幂等创建）队列
	Declare(ctx context.Context, queues ...string) error

	// 非阻塞取一条消息，队列为空时返回 (nil, nil)
	TryTake(ctx context.Context, queue string) (*Delivery, error)

	// 发布消息
	Publish(ctx context.Context, queue string, body []byte) error

	// 确认消息，确认后从队列永久移除
	Ack(ctx context.Context, d *Delivery) error

	// 释放消息，交还 broker 重投
	Nak(ctx context.Context, d *Delivery) error

	// 关闭连接，未确认的消息交还 broker
	Close() error
}
