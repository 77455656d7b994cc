package producer

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/faultinject"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/message"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
	"github.com/ChenBigdata421/jxt-railflow/sdk/service"
)

// Profile 一个上游 producer 的固定演示消息和目标队列
type Profile struct {
	Service  string          // 响应中的服务名，例如 TicketService
	Queue    string          // 发往的队列
	CacheKey string          // 为空时不写缓存
	Fields   message.Payload // 演示消息字段，message_id / conversation_id 每次重新生成
}

var schedulePayload = message.Payload{
	"train_id":       "123",
	"departure_time": "2025-04-15T10:00:00",
	"arrival_time":   "2025-04-15T14:00:00",
	"route":          []interface{}{"StationA", "StationB", "StationC"},
}

var (
	TrainProfile = Profile{
		Service:  "TrainService",
		Queue:    queue.ScheduleQueue,
		CacheKey: cache.KeyTrainService,
		Fields:   schedulePayload,
	}

	TicketProfile = Profile{
		Service:  "TicketService",
		Queue:    queue.TicketQueue,
		CacheKey: cache.KeyTicketService,
		Fields: message.Payload{
			"ticket_id":      "456",
			"train_id":       "123",
			"passenger_id":   "789",
			"seat_number":    "12A",
			"departure_time": "2025-04-15T10:00:00",
		},
	}

	PassengerProfile = Profile{
		Service:  "PassengerService",
		Queue:    queue.PassengerQueue,
		CacheKey: cache.KeyPassenger,
		Fields: message.Payload{
			"passenger_id": "789",
			"name":         "John Doe",
			"contact_info": "john.doe@example.com",
		},
	}

	TrainManagementProfile = Profile{
		Service: "TrainManagementService",
		Queue:   queue.TrainManagementQueue,
		Fields: func() message.Payload {
			p := message.Payload{"operation": "update_schedule"}
			for k, v := range schedulePayload {
				p[k] = v
			}
			return p
		}(),
	}
)

// Triggerer 处理一次 GET /trigger
type Triggerer interface {
	DisplayName() string
	Trigger(ctx context.Context) error
}

// Producer 生成演示消息并入队
type Producer struct {
	service.Service
	profile  Profile
	poisoned atomic.Bool
}

func New(svc service.Service, profile Profile) *Producer {
	return &Producer{Service: svc, profile: profile}
}

func (p *Producer) DisplayName() string {
	return p.profile.Service
}

// Setup 连接 broker 并声明目标队列；失败时下一次 Trigger 会先重连
func (p *Producer) Setup(ctx context.Context) error {
	if err := p.Open(ctx, p.profile.Queue); err != nil {
		p.poisoned.Store(true)
		return err
	}
	return nil
}

// Trigger 顺序：HTTP 故障注入 -> 发布 -> 写缓存
func (p *Producer) Trigger(ctx context.Context) error {
	if err := p.Faults.Check(faultinject.StepHTTPAccept); err != nil {
		return err
	}

	// 上次发布遇到连接错误时先重连
	if p.poisoned.Load() {
		if err := p.Reopen(ctx, p.profile.Queue); err != nil {
			return err
		}
		p.poisoned.Store(false)
	}

	msg := message.NewEnvelope(p.profile.Fields)
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, p.profile.Queue, body); err != nil {
		if !errors.Is(err, faultinject.ErrInjected) {
			p.poisoned.Store(true)
		}
		return err
	}
	if p.profile.CacheKey != "" {
		if err := p.WriteCache(ctx, p.profile.CacheKey, body); err != nil {
			return err
		}
	}

	p.Logger().Info("message published",
		zap.String("queue", p.profile.Queue),
		zap.String("message_id", msg.MessageID()),
		zap.String("conversation_id", msg.ConversationID()))
	return nil
}

// StatusOnly 消费型服务的 /trigger，只回应服务名
type StatusOnly string

func (s StatusOnly) DisplayName() string {
	return string(s)
}

func (s StatusOnly) Trigger(context.Context) error {
	return nil
}
