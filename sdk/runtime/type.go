package runtime

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
)

// Task 一个长期运行的组件，ctx 取消后返回
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc 函数形式的 Task
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type Runtime interface {
	// SetEngine 使用的路由
	SetEngine(engine http.Handler)
	GetEngine() http.Handler

	GetRouter() []Router

	// SetLogger 使用zap
	SetLogger(logger *zap.Logger)
	GetLogger() *zap.Logger

	// SetCacheAdapter last-message 缓存，多个服务共享
	SetCacheAdapter(cache.LastStateCache)
	GetCacheAdapter() cache.LastStateCache

	// SetQueueAdapter 按服务名登记队列客户端
	SetQueueAdapter(service string, client queue.Client)
	GetQueueAdapter(service string) queue.Client
	GetQueueAdapters(fn func(service string, client queue.Client) bool)

	// GetMemoryBroker queue.type=memory 时所有客户端共享的 broker
	GetMemoryBroker() *queue.MemoryBroker

	SetCrontab(key string, crontab *cron.Cron)
	GetCrontab(key string) *cron.Cron
	GetCrontabs(fn func(key string, crontab *cron.Cron) bool)

	// SetRegistry prometheus 注册表
	SetRegistry(*prometheus.Registry)
	GetRegistry() *prometheus.Registry

	// AddTask 登记随进程运行的组件
	AddTask(name string, task Task)
	GetTasks() []string

	GetConfig(key string) interface{}
	SetConfig(key string, value interface{})

	// Run 运行全部 Task，任一返回错误时取消其余
	Run(ctx context.Context) error
	Close() error
}
