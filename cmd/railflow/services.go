package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/faultinject"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/loadgen"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/pipeline"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/producer"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
	"github.com/ChenBigdata421/jxt-railflow/sdk/runtime"
	"github.com/ChenBigdata421/jxt-railflow/sdk/service"
)

// builder 把一个服务名展开成 stage、producer、loadgen 和 HTTP 路由
type builder struct {
	ctx        context.Context
	app        *runtime.Application
	metrics    pipeline.MetricsCollector
	triggerers []producer.Triggerer
}

var services = map[string]func(b *builder) error{
	"aggregation": func(b *builder) error {
		return b.stage(pipeline.NewAggregationEngine(b.service("AggregationEngine"), config.PipelineConfig.TrainID))
	},
	"train-management": func(b *builder) error {
		if err := b.stage(pipeline.NewFanoutDispatcher(b.service("FanoutDispatcher"))); err != nil {
			return err
		}
		return b.producer(producer.TrainManagementProfile)
	},
	"processing": func(b *builder) error {
		return b.stage(pipeline.NewProcessingStage(b.service("ProcessingService")))
	},
	"notification": func(b *builder) error {
		return b.stage(pipeline.NewNotificationSink(b.service("NotificationService")))
	},
	"train":     func(b *builder) error { return b.producer(producer.TrainProfile) },
	"ticket":    func(b *builder) error { return b.producer(producer.TicketProfile) },
	"passenger": func(b *builder) error { return b.producer(producer.PassengerProfile) },
	"loadgen":   func(b *builder) error { return b.loadgen(config.LoadGenConfig) },
}

func serviceNames() string {
	names := make([]string, 0, len(services)+1)
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(append(names, "all"), "|")
}

// build 按服务名注册组件；all 在一个进程里运行全部服务
func build(ctx context.Context, app *runtime.Application, name string) error {
	registry := app.GetRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := pipeline.NewPrometheusMetricsCollector(config.ApplicationConfig.Name, registry)
	if err != nil {
		return err
	}
	b := &builder{ctx: ctx, app: app, metrics: metrics}

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "all" {
		for _, svc := range []string{"aggregation", "train-management", "processing", "notification", "train", "ticket", "passenger"} {
			if err := services[svc](b); err != nil {
				return fmt.Errorf("%s: %w", svc, err)
			}
		}
		lg := *config.LoadGenConfig
		lg.Targets = []string{localTrigger(config.HttpConfig)}
		if err := b.loadgen(&lg); err != nil {
			return err
		}
	} else {
		fn, ok := services[name]
		if !ok {
			return fmt.Errorf("unknown service %q, expected one of %s", name, serviceNames())
		}
		if err := fn(b); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	b.http()
	return nil
}

// service 每个组件使用独立的队列连接，缓存共享
func (b *builder) service(name string) service.Service {
	return service.Service{
		Name:   name,
		Log:    logger.Named(name),
		Cache:  b.app.GetCacheAdapter(),
		Faults: faultinject.NewFromConfig(config.PipelineConfig.Faults),
	}
}

func (b *builder) connect(svc *service.Service) error {
	client, err := queue.NewClient(config.QueueConfigInstance, b.app.GetMemoryBroker())
	if err != nil {
		return err
	}
	b.app.SetQueueAdapter(svc.Name, client)
	svc.Queue = client
	return nil
}

type stageService interface {
	pipeline.Stage
	Svc() *service.Service
}

func (b *builder) stage(s stageService) error {
	if err := b.connect(s.Svc()); err != nil {
		return err
	}
	runner := pipeline.NewRunner(s, pipeline.RunnerOptions{
		Backoff: config.PipelineConfig.Backoff,
		Logger:  logger.Logger,
		Metrics: b.metrics,
	})
	b.app.AddTask(s.Name(), runner)
	b.triggerers = append(b.triggerers, producer.StatusOnly(s.Name()))
	return nil
}

func (b *builder) producer(profile producer.Profile) error {
	svc := b.service(profile.Service)
	if err := b.connect(&svc); err != nil {
		return err
	}
	p := producer.New(svc, profile)
	if err := p.Setup(b.ctx); err != nil {
		svc.Logger().Warn("producer setup failed, will reconnect on trigger", zap.Error(err))
	}
	b.triggerers = append(b.triggerers, p)
	return nil
}

func (b *builder) loadgen(cfg *config.LoadGen) error {
	l, err := loadgen.New(cfg, logger.Logger)
	if err != nil {
		return err
	}
	b.app.SetCrontab("loadgen", l.Crontab())
	b.app.AddTask("loadgen", l)
	return nil
}

// http 只挂载 producer；消费型服务的 /trigger 只返回服务名
func (b *builder) http() {
	cfg := config.HttpConfig
	if !cfg.Enabled {
		return
	}
	var triggerers []producer.Triggerer
	for _, t := range b.triggerers {
		if _, ok := t.(*producer.Producer); ok {
			triggerers = append(triggerers, t)
		}
	}
	if len(triggerers) == 0 {
		triggerers = b.triggerers
	}

	engine := producer.NewRouter(producer.RouterOptions{
		Triggerers:  triggerers,
		RateLimiter: producer.NewRateLimiter(config.PipelineConfig.RateLimit),
		Registry:    b.app.GetRegistry(),
	})
	b.app.SetEngine(engine)

	srv := &http.Server{
		Addr:           net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeoutDuration(),
		WriteTimeout:   cfg.WriteTimeoutDuration(),
		IdleTimeout:    cfg.IdleTimeoutDuration(),
		MaxHeaderBytes: cfg.MaxHeaderBytes << 20,
	}
	b.app.AddTask("http", runtime.HTTPServer(srv, logger.Logger))
}

func localTrigger(cfg *config.HTTPConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/trigger"
}
