package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
)

type Application struct {
	queues      sync.Map               //按服务名登记的队列客户端
	crontabs    sync.Map               //crontab
	engine      http.Handler           //路由引擎
	mux         sync.RWMutex           //互斥锁
	cache       cache.LastStateCache   //缓存
	memoryQueue *queue.MemoryBroker    //内存队列
	registry    *prometheus.Registry   //指标
	tasks       map[string]Task        //随进程运行的组件
	routers     []Router               //路由
	configs     map[string]interface{} // 系统参数
}

type Router struct {
	HttpMethod, RelativePath, Handler string
}

type Routers struct {
	List []Router
}

// NewConfig 默认值
func NewConfig() *Application {
	return &Application{
		queues:      sync.Map{},
		crontabs:    sync.Map{},
		memoryQueue: queue.NewMemoryBroker(),
		registry:    prometheus.NewRegistry(),
		tasks:       make(map[string]Task),
		routers:     make([]Router, 0),
		configs:     make(map[string]interface{}),
	}
}

// SetEngine 设置路由引擎
func (e *Application) SetEngine(engine http.Handler) {
	e.engine = engine
}

// GetEngine 获取路由引擎
func (e *Application) GetEngine() http.Handler {
	return e.engine
}

// GetRouter 获取路由表
func (e *Application) GetRouter() []Router {
	return e.setRouter()
}

// setRouter 设置路由表
func (e *Application) setRouter() []Router {
	e.routers = e.routers[:0]
	switch engine := e.engine.(type) {
	case *gin.Engine:
		for _, router := range engine.Routes() {
			e.routers = append(e.routers, Router{RelativePath: router.Path, Handler: router.Handler, HttpMethod: router.Method})
		}
	}
	return e.routers
}

// SetLogger 设置日志组件
func (e *Application) SetLogger(l *zap.Logger) {
	logger.Logger = l
	logger.DefaultLogger = l.Sugar()
}

// GetLogger 获取日志组件
func (e *Application) GetLogger() *zap.Logger {
	return logger.Logger
}

// SetCacheAdapter 设置缓存
func (e *Application) SetCacheAdapter(c cache.LastStateCache) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.cache = c
}

// GetCacheAdapter 获取缓存
func (e *Application) GetCacheAdapter() cache.LastStateCache {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return e.cache
}

// SetQueueAdapter 设置服务的队列客户端
func (e *Application) SetQueueAdapter(service string, client queue.Client) {
	e.queues.Store(service, client)
}

// GetQueueAdapter 获取服务的队列客户端
func (e *Application) GetQueueAdapter(service string) queue.Client {
	if value, ok := e.queues.Load(service); ok {
		return value.(queue.Client)
	}
	return nil
}

// GetQueueAdapters 遍历所有队列客户端
func (e *Application) GetQueueAdapters(fn func(service string, client queue.Client) bool) {
	e.queues.Range(func(key, value interface{}) bool {
		return fn(key.(string), value.(queue.Client))
	})
}

func (e *Application) GetMemoryBroker() *queue.MemoryBroker {
	return e.memoryQueue
}

// SetCrontab 设置对应key的crontab
func (e *Application) SetCrontab(key string, crontab *cron.Cron) {
	e.crontabs.Store(key, crontab)
}

// GetCrontab 根据key获取crontab
func (e *Application) GetCrontab(key string) *cron.Cron {
	if value, ok := e.crontabs.Load(key); ok {
		return value.(*cron.Cron)
	}
	return nil
}

// GetCrontabs 获取所有map里的crontab数据
func (e *Application) GetCrontabs(fn func(key string, crontab *cron.Cron) bool) {
	e.crontabs.Range(func(key, value interface{}) bool {
		return fn(key.(string), value.(*cron.Cron))
	})
}

func (e *Application) SetRegistry(r *prometheus.Registry) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.registry = r
}

func (e *Application) GetRegistry() *prometheus.Registry {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return e.registry
}

// AddTask 同名覆盖
func (e *Application) AddTask(name string, task Task) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.tasks[name] = task
}

// GetTasks 已登记的组件名，按名称排序
func (e *Application) GetTasks() []string {
	e.mux.RLock()
	defer e.mux.RUnlock()
	names := make([]string, 0, len(e.tasks))
	for name := range e.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetConfig 设置对应key的config
func (e *Application) SetConfig(key string, value interface{}) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.configs[key] = value
}

// GetConfig 获取对应key的config
func (e *Application) GetConfig(key string) interface{} {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.configs[key]
}

// Run 并发运行全部 Task，ctx 取消或任一 Task 出错后等待其余退出
func (e *Application) Run(ctx context.Context) error {
	e.mux.RLock()
	tasks := make(map[string]Task, len(e.tasks))
	for name, task := range e.tasks {
		tasks[name] = task
	}
	e.mux.RUnlock()

	if len(tasks) == 0 {
		return fmt.Errorf("no task registered")
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, task := range tasks {
		name, task := name, task
		g.Go(func() error {
			if err := task.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close 关闭所有队列客户端和缓存，重复关闭无副作用
func (e *Application) Close() error {
	var errs []error
	e.GetQueueAdapters(func(service string, client queue.Client) bool {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue %s: %w", service, err))
		}
		return true
	})
	e.GetCrontabs(func(_ string, crontab *cron.Cron) bool {
		crontab.Stop()
		return true
	})
	if c := e.GetCacheAdapter(); c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close runtime: %v", errs)
	}
	return nil
}
