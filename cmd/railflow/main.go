package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-railflow/sdk/runtime"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, serviceName string

	flagSet := pflag.NewFlagSet("railflow", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时只使用环境变量和默认值")
	flagSet.StringVarP(&serviceName, "service", "s", "", "运行的服务: "+serviceNames())
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := config.Setup(configPath); err != nil {
		return err
	}
	if serviceName != "" {
		config.PipelineConfig.ServiceName = serviceName
	}
	if err := config.AppConfig.Validate(); err != nil {
		return err
	}
	logger.Setup()
	defer func() { _ = logger.Logger.Sync() }()

	app := runtime.NewConfig()
	app.SetLogger(logger.Logger)
	app.SetConfig("service", config.PipelineConfig.ServiceName)

	c, err := setupCache(context.Background(), logger.Logger)
	if err != nil {
		return err
	}
	app.SetCacheAdapter(c)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Logger.Warn("close runtime", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := build(ctx, app, config.PipelineConfig.ServiceName); err != nil {
		return err
	}
	logger.Logger.Info("railflow starting",
		zap.String("service", config.PipelineConfig.ServiceName),
		zap.String("queue", config.QueueConfigInstance.Type),
		zap.String("cache", c.String()),
		zap.Strings("tasks", app.GetTasks()))

	return app.Run(ctx)
}

// setupCache 只有配置错误才返回错误；Redis 不可达只记录警告
func setupCache(ctx context.Context, log *zap.Logger) (cache.LastStateCache, error) {
	c, err := config.CacheConfig.Setup()
	if err != nil {
		return nil, fmt.Errorf("cache setup: %w", err)
	}
	if r, ok := c.(*cache.Redis); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, cache writes will fail until it recovers", zap.Error(err))
		}
	}
	return c, nil
}
