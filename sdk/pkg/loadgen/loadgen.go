package loadgen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
)

// LoadGen 按 cron 调度依次请求每个 producer 的 /trigger
type LoadGen struct {
	crontab *cron.Cron
	client  *http.Client
	targets []string
	logger  *zap.Logger
	rounds  atomic.Int64
}

// New 解析调度表达式；logger 为空时使用 nop
func New(cfg *config.LoadGen, logger *zap.Logger) (*LoadGen, error) {
	cfg.SetDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &LoadGen{
		client:  &http.Client{Timeout: cfg.Timeout},
		targets: append([]string(nil), cfg.Targets...),
		logger:  logger.Named("loadgen"),
	}
	l.crontab = cron.New(
		cron.WithLogger(cronLogger{l.logger.Sugar()}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{l.logger.Sugar()})),
	)
	if _, err := l.crontab.AddFunc(cfg.Schedule, func() { l.Fire(context.Background()) }); err != nil {
		return nil, fmt.Errorf("解析调度表达式失败 %q: %w", cfg.Schedule, err)
	}
	return l, nil
}

// Fire 请求一轮全部 target，单个失败不影响后续
func (l *LoadGen) Fire(ctx context.Context) {
	l.rounds.Add(1)
	for _, target := range l.targets {
		status, err := l.hit(ctx, target)
		if err != nil {
			l.logger.Warn("trigger failed", zap.String("target", target), zap.Error(err))
			continue
		}
		l.logger.Info("triggered", zap.String("target", target), zap.Int("status", status))
	}
}

// Crontab 底层调度器，登记到 runtime 便于统一停止
func (l *LoadGen) Crontab() *cron.Cron {
	return l.crontab
}

// Rounds 已执行的轮数
func (l *LoadGen) Rounds() int64 {
	return l.rounds.Load()
}

func (l *LoadGen) hit(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Run 启动调度，ctx 取消后等待正在执行的一轮结束
func (l *LoadGen) Run(ctx context.Context) error {
	l.crontab.Start()
	l.logger.Info("loadgen started", zap.Strings("targets", l.targets))
	<-ctx.Done()
	<-l.crontab.Stop().Done()
	l.logger.Info("loadgen stopped")
	return nil
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
