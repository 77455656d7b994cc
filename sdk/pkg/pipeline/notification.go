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

// NotificationSink 流水线终点，只记录最近一条通知
type NotificationSink struct {
	baseStage
}

func NewNotificationSink(svc service.Service) *NotificationSink {
	return &NotificationSink{
		baseStage: baseStage{
			Service: svc,
			queues:  []string{queue.NotificationQueue},
		},
	}
}

func (n *NotificationSink) RunCycle(ctx context.Context) (bool, error) {
	d, err := n.Queue.TryTake(ctx, queue.NotificationQueue)
	if err != nil {
		return true, n.stepError(StepTake, queue.NotificationQueue, err)
	}
	if d == nil {
		return false, nil
	}

	if err := n.Process(); err != nil {
		return true, n.settleFailed(ctx, d, n.stepError(faultinject.StepProcess, "", err))
	}
	if err := n.WriteCache(ctx, cache.KeyNotification, d.Body); err != nil {
		return true, n.settleFailed(ctx, d, n.stepError(faultinject.StepCacheWrite, "", err))
	}
	if err := n.Ack(ctx, d); err != nil {
		return true, n.settleFailed(ctx, d, n.stepError(faultinject.StepAck, d.Queue, err))
	}

	notification := message.Decode(d.Body)
	n.Logger().Info("notification recorded",
		zap.String("passenger_id", notification.StringOr(message.FieldPassengerID, message.UnknownPassenger)))
	return true, nil
}
