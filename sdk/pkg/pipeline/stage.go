package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/faultinject"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
	"github.com/ChenBigdata421/jxt-railflow/sdk/service"
)

// baseStage 各 stage 共用的连接管理
type baseStage struct {
	service.Service
	queues []string
}

func (s *baseStage) Name() string {
	return s.Service.Name
}

// Svc 暴露依赖，装配时注入队列客户端
func (s *baseStage) Svc() *service.Service {
	return &s.Service
}

func (s *baseStage) Setup(ctx context.Context) error {
	return s.Open(ctx, s.queues...)
}

func (s *baseStage) Reconnect(ctx context.Context) error {
	return s.Reopen(ctx, s.queues...)
}

func (s *baseStage) stepError(step faultinject.Step, queueName string, err error) error {
	return &StepError{Stage: s.Service.Name, Step: step, Queue: queueName, Err: err}
}

// settleFailed 周期失败时释放消息，释放失败只记录日志，断开连接时 broker 仍会重投
func (s *baseStage) settleFailed(ctx context.Context, d *queue.Delivery, cause error) error {
	if err := s.Queue.Nak(ctx, d); err != nil {
		s.Logger().Warn("release delivery failed",
			zap.String("queue", d.Queue),
			zap.String("delivery", d.ID),
			zap.Error(err))
	}
	return cause
}
