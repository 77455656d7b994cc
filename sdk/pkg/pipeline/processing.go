package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/faultinject"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/message"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
	"github.com/ChenBigdata421/jxt-railflow/sdk/service"
)

// ProcessingStage 每条聚合记录生成一条乘客通知
type ProcessingStage struct {
	baseStage
}

func NewProcessingStage(svc service.Service) *ProcessingStage {
	return &ProcessingStage{
		baseStage: baseStage{
			Service: svc,
			queues:  []string{queue.AggregationQueue, queue.NotificationQueue},
		},
	}
}

func (p *ProcessingStage) RunCycle(ctx context.Context) (bool, error) {
	d, err := p.Queue.TryTake(ctx, queue.AggregationQueue)
	if err != nil {
		return true, p.stepError(StepTake, queue.AggregationQueue, err)
	}
	if d == nil {
		return false, nil
	}

	aggregate := message.Decode(d.Body)
	log := p.Logger().With(
		zap.String("message_id", aggregate.MessageID()),
		zap.String("conversation_id", aggregate.ConversationID()))

	if err := p.Process(); err != nil {
		return true, p.settleFailed(ctx, d, p.stepError(faultinject.StepProcess, "", err))
	}

	notification := message.DeriveNotification(aggregate)
	body, err := notification.Encode()
	if err != nil {
		return true, p.settleFailed(ctx, d, p.stepError(StepEncode, "", err))
	}

	if err := p.Publish(ctx, queue.NotificationQueue, body); err != nil {
		return true, p.settleFailed(ctx, d, p.stepError(faultinject.StepPublish, queue.NotificationQueue, err))
	}
	if err := p.WriteCache(ctx, cache.KeyProcessing, d.Body); err != nil {
		return true, p.settleFailed(ctx, d, p.stepError(faultinject.StepCacheWrite, "", err))
	}
	if err := p.Ack(ctx, d); err != nil {
		return true, p.settleFailed(ctx, d, p.stepError(faultinject.StepAck, d.Queue, err))
	}

	log.Info("notification published", zap.String("passenger_id", notification.PassengerID))
	return true, nil
}
