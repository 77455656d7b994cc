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

// AggregationEngine 从 Schedule / Ticket / Passenger 三个队列各尝试取一条，
// 把取到的部分合并成一条聚合记录发往 AggregationQueue
// 不按业务键关联，取的是各队列当前的队首
type AggregationEngine struct {
	baseStage
	trainID string
}

func NewAggregationEngine(svc service.Service, trainID string) *AggregationEngine {
	return &AggregationEngine{
		baseStage: baseStage{
			Service: svc,
			queues:  []string{queue.ScheduleQueue, queue.TicketQueue, queue.PassengerQueue, queue.AggregationQueue},
		},
		trainID: trainID,
	}
}

// RunCycle 顺序：取输入 -> 发布 -> 写缓存 -> 确认；确认前的任何失败都释放全部输入
func (e *AggregationEngine) RunCycle(ctx context.Context) (bool, error) {
	in := &inputSet{stage: &e.baseStage}

	schedule, err := in.take(ctx, queue.ScheduleQueue)
	if err != nil {
		return true, in.abort(ctx, e.stepError(StepTake, queue.ScheduleQueue, err))
	}
	ticket, err := in.take(ctx, queue.TicketQueue)
	if err != nil {
		return true, in.abort(ctx, e.stepError(StepTake, queue.TicketQueue, err))
	}
	passenger, err := in.take(ctx, queue.PassengerQueue)
	if err != nil {
		return true, in.abort(ctx, e.stepError(StepTake, queue.PassengerQueue, err))
	}

	if in.empty() {
		return false, nil
	}

	log := e.Logger().With(in.fields()...)

	if err := e.Process(); err != nil {
		return true, in.abort(ctx, e.stepError(faultinject.StepProcess, "", err))
	}

	aggregate := message.BuildAggregate(e.trainID, schedule, ticket, passenger)
	body, err := aggregate.Encode()
	if err != nil {
		return true, in.abort(ctx, e.stepError(StepEncode, "", err))
	}

	if err := e.Publish(ctx, queue.AggregationQueue, body); err != nil {
		return true, in.abort(ctx, e.stepError(faultinject.StepPublish, queue.AggregationQueue, err))
	}
	if err := e.WriteCache(ctx, cache.KeyAggregation, body); err != nil {
		return true, in.abort(ctx, e.stepError(faultinject.StepCacheWrite, "", err))
	}
	if err := in.ack(ctx); err != nil {
		// 聚合记录已发布，重投后下游会再收到一条等价记录
		return true, in.abort(ctx, err)
	}

	log.Info("aggregate published",
		zap.Bool("has_schedule", schedule.Present()),
		zap.Bool("has_ticket", ticket.Present()),
		zap.Bool("has_passenger", passenger.Present()))
	return true, nil
}

// inputSet 一个周期内取到的消息，周期结束即丢弃
type inputSet struct {
	stage *baseStage
	items []*queue.Delivery
	acked int
}

// take 队列为空时返回 nil；消息体为空或非法时仍算取到，只是内容为空映射
func (in *inputSet) take(ctx context.Context, name string) (message.Payload, error) {
	d, err := in.stage.Queue.TryTake(ctx, name)
	if err != nil || d == nil {
		return nil, err
	}
	in.items = append(in.items, d)
	return message.Decode(d.Body), nil
}

func (in *inputSet) empty() bool {
	return len(in.items) == 0
}

// ack 按取出顺序逐条确认，遇到失败立即停止
func (in *inputSet) ack(ctx context.Context) error {
	for in.acked < len(in.items) {
		d := in.items[in.acked]
		if err := in.stage.Ack(ctx, d); err != nil {
			return in.stage.stepError(faultinject.StepAck, d.Queue, err)
		}
		in.acked++
	}
	return nil
}

// abort 释放尚未确认的消息
func (in *inputSet) abort(ctx context.Context, cause error) error {
	for _, d := range in.items[in.acked:] {
		in.stage.settleFailed(ctx, d, cause)
	}
	in.acked = len(in.items)
	return cause
}

func (in *inputSet) fields() []zap.Field {
	fields := make([]zap.Field, 0, len(in.items)*2)
	for _, d := range in.items {
		p := message.Decode(d.Body)
		fields = append(fields,
			zap.String(d.Queue+".message_id", p.MessageID()),
			zap.String(d.Queue+".conversation_id", p.ConversationID()))
	}
	return fields
}
