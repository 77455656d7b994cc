package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/faultinject"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
)

// Service stage 和 producer 共用的依赖与步骤封装
// 每个步骤先经过故障注入，再调用真实的队列或缓存
type Service struct {
	Name   string
	Log    *zap.Logger
	Queue  queue.Client
	Cache  cache.LastStateCache
	Faults *faultinject.Injector
	Error  error
}

func (db *Service) AddError(err error) error {
	if db.Error == nil {
		db.Error = err
	} else if err != nil {
		db.Error = fmt.Errorf("%v; %w", db.Error, err)
	}
	return db.Error
}

// Logger 未设置时返回 nop
func (db *Service) Logger() *zap.Logger {
	if db.Log == nil {
		return zap.NewNop()
	}
	return db.Log
}

// Open 连接 broker 并声明用到的队列
func (db *Service) Open(ctx context.Context, queues ...string) error {
	if err := db.Queue.Connect(ctx); err != nil {
		return err
	}
	return db.Queue.Declare(ctx, queues...)
}

// Reopen 丢弃当前连接后重新连接并声明队列
func (db *Service) Reopen(ctx context.Context, queues ...string) error {
	if err := db.Queue.Reconnect(ctx); err != nil {
		return err
	}
	return db.Queue.Declare(ctx, queues...)
}

// Process 消费后、发布前的处理故障
func (db *Service) Process() error {
	return db.Faults.Check(faultinject.StepProcess)
}

// Publish 发布到队列
func (db *Service) Publish(ctx context.Context, name string, body []byte) error {
	if err := db.Faults.Check(faultinject.StepPublish); err != nil {
		return err
	}
	return db.Queue.Publish(ctx, name, body)
}

// Ack 确认一条消息
func (db *Service) Ack(ctx context.Context, d *queue.Delivery) error {
	if err := db.Faults.Check(faultinject.StepAck); err != nil {
		return err
	}
	return db.Queue.Ack(ctx, d)
}

// WriteCache 覆盖写入本服务的 last-message 键
func (db *Service) WriteCache(ctx context.Context, key string, value []byte) error {
	if err := db.Faults.Check(faultinject.StepCacheWrite); err != nil {
		return err
	}
	return db.Cache.SetLastValue(ctx, key, value)
}

// Close 关闭队列连接；缓存可能被多个服务共享，由 runtime 统一关闭
func (db *Service) Close() error {
	if db.Queue == nil {
		return nil
	}
	if err := db.Queue.Close(); err != nil {
		return db.AddError(err)
	}
	return nil
}
