package pipeline

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Stage 一个消费循环；同一实例内周期严格串行
type Stage interface {
	Name() string

	// Setup 连接 broker 并声明队列
	Setup(ctx context.Context) error

	// RunCycle 执行一个周期，busy=false 表示没有取到任何输入
	RunCycle(ctx context.Context) (busy bool, err error)

	// Reconnect 周期失败后重建连接
	Reconnect(ctx context.Context) error

	Close() error
}

// RunnerOptions 运行参数
type RunnerOptions struct {
	Backoff time.Duration // 空闲或失败后的等待
	Logger  *zap.Logger
	Metrics MetricsCollector
}

// Runner 驱动 Stage 直到收到停止信号
// 失败的周期把连接标记为不可信，下一轮先 Reconnect；重试不设上限
type Runner struct {
	stage    Stage
	backoff  time.Duration
	logger   *zap.Logger
	metrics  MetricsCollector
	poisoned bool
}

func NewRunner(stage Stage, opts RunnerOptions) *Runner {
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = &NoOpMetricsCollector{}
	}
	return &Runner{
		stage:   stage,
		backoff: opts.Backoff,
		logger:  opts.Logger.With(zap.String("service", stage.Name())),
		metrics: opts.Metrics,
	}
}

// Run 阻塞运行，ctx 取消后在周期之间退出并关闭 stage
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if err := r.stage.Close(); err != nil {
			r.logger.Warn("close stage failed", zap.Error(err))
		}
	}()

	if !r.setup(ctx) {
		return nil
	}
	r.logger.Info("stage started", zap.Duration("backoff", r.backoff))

	for ctx.Err() == nil {
		// 进行中的周期不响应取消
		cycleCtx := context.WithoutCancel(ctx)

		if r.poisoned {
			if err := r.stage.Reconnect(cycleCtx); err != nil {
				r.fail(&StepError{Stage: r.stage.Name(), Step: StepReconnect, Err: err}, 0)
				r.wait(ctx)
				continue
			}
			r.poisoned = false
			r.logger.Info("reconnected")
		}

		start := time.Now()
		busy, err := r.RunOnce(cycleCtx)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			r.poisoned = true
			r.fail(err, elapsed)
			r.wait(ctx)
		case !busy:
			r.metrics.RecordCycle(r.stage.Name(), OutcomeIdle, elapsed)
			r.wait(ctx)
		default:
			r.metrics.RecordCycle(r.stage.Name(), OutcomeSuccess, elapsed)
		}
	}

	r.logger.Info("stage stopped")
	return nil
}

// RunOnce 执行一个周期，panic 转为 PanicError
func (r *Runner) RunOnce(ctx context.Context) (busy bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			busy = true
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return r.stage.RunCycle(ctx)
}

func (r *Runner) setup(ctx context.Context) bool {
	for ctx.Err() == nil {
		err := r.stage.Setup(context.WithoutCancel(ctx))
		if err == nil {
			return true
		}
		r.fail(&StepError{Stage: r.stage.Name(), Step: StepSetup, Err: err}, 0)
		r.wait(ctx)
	}
	return false
}

func (r *Runner) fail(err error, elapsed time.Duration) {
	class := Classify(err)
	step := string(StepOf(err))
	r.metrics.RecordCycle(r.stage.Name(), OutcomeFailure, elapsed)
	r.metrics.RecordFailure(r.stage.Name(), step, class)

	fields := []zap.Field{
		zap.String("step", step),
		zap.String("class", string(class)),
		zap.Duration("backoff", r.backoff),
		zap.Error(err),
	}
	var p *PanicError
	if errors.As(err, &p) {
		fields = append(fields, zap.ByteString("stack", p.Stack))
	}
	r.logger.Error("cycle failed", fields...)
}

// wait 等待 backoff，收到停止信号时提前返回
func (r *Runner) wait(ctx context.Context) {
	t := time.NewTimer(r.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
