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

// FanoutQueues 车次管理消息复制到的下游队列
var FanoutQueues = []string{queue.ScheduleQueue, queue.TicketQueue, queue.PassengerQueue}

// FanoutDispatcher 把 TrainManagementQueue 的一条消息原样发布到三个下游队列
type FanoutDispatcher struct {
	baseStage
}

func NewFanoutDispatcher(svc service.Service) *FanoutDispatcher {
	return &FanoutDispatcher{
		baseStage: baseStage{
			Service: svc,
			queues:  append([]string{queue.TrainManagementQueue}, FanoutQueues...),
		},
	}
}

// RunCycle 任一发布失败都不确认入站消息，整条消息重投后全部重发
func (f *FanoutDispatcher) RunCycle(ctx context.Context) (bool, error) {
	d, err := f.Queue.TryTake(ctx, queue.TrainManagementQueue)
	if err != nil {
		return true, f.stepError(StepTake, queue.TrainManagementQueue, err)
	}
	if d == nil {
		return false, nil
	}

	msg := message.Decode(d.Body)
	log := f.Logger().With(
		zap.String("message_id", msg.MessageID()),
		zap.String("conversation_id", msg.ConversationID()))

	// 发布之前失败，没有任何副作用
	if err := f.Process(); err != nil {
		return true, f.settleFailed(ctx, d, f.stepError(faultinject.StepProcess, "", err))
	}

	for _, name := range FanoutQueues {
		if err := f.Publish(ctx, name, d.Body); err != nil {
			return true, f.settleFailed(ctx, d, f.stepError(faultinject.StepPublish, name, err))
		}
		log.Debug("fanout published", zap.String("queue", name))
	}

	if err := f.WriteCache(ctx, cache.KeyTrainManagement, d.Body); err != nil {
		return true, f.settleFailed(ctx, d, f.stepError(faultinject.StepCacheWrite, "", err))
	}
	if err := f.Ack(ctx, d); err != nil {
		return true, f.settleFailed(ctx, d, f.stepError(faultinject.StepAck, d.Queue, err))
	}

	log.Info("train management message fanned out", zap.Strings("queues", FanoutQueues))
	return true, nil
}
