package faultinject

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
)

// Step 可注入故障的步骤
type Step string

const (
	StepProcess    Step = "process"
	StepPublish    Step = "publish"
	StepAck        Step = "ack"
	StepCacheWrite Step = "cacheWrite"
	StepHTTPAccept Step = "httpAccept"
)

// ErrInjected 所有注入故障都包装该错误
var ErrInjected = errors.New("injected fault")

// Injector 按步骤概率返回模拟故障，零值和 nil 都不注入
type Injector struct {
	enabled bool
	probs   map[Step]float64

	mu    sync.Mutex
	float func() float64
}

// New 创建注入器，float 为空时使用按时间播种的随机源
func New(enabled bool, probs map[Step]float64, float func() float64) *Injector {
	if float == nil {
		float = rand.New(rand.NewSource(time.Now().UnixNano())).Float64
	}
	p := make(map[Step]float64, len(probs))
	for k, v := range probs {
		p[k] = v
	}
	return &Injector{enabled: enabled, probs: p, float: float}
}

// NewFromConfig 由 pipeline.faults 配置创建
func NewFromConfig(cfg config.FaultConfig) *Injector {
	return New(cfg.Enabled, map[Step]float64{
		StepProcess:    cfg.Process,
		StepPublish:    cfg.Publish,
		StepAck:        cfg.Ack,
		StepCacheWrite: cfg.CacheWrite,
		StepHTTPAccept: cfg.HTTPAccept,
	}, nil)
}

// Disabled 不注入任何故障
func Disabled() *Injector {
	return &Injector{}
}

// Enabled 是否开启
func (i *Injector) Enabled() bool {
	return i != nil && i.enabled
}

// Probability 步骤的故障概率
func (i *Injector) Probability(step Step) float64 {
	if i == nil {
		return 0
	}
	return i.probs[step]
}

// Check 以配置的概率返回 "Simulated <step> failure"
func (i *Injector) Check(step Step) error {
	if !i.Enabled() {
		return nil
	}
	p := i.probs[step]
	if p <= 0 {
		return nil
	}

	i.mu.Lock()
	r := i.float()
	i.mu.Unlock()

	if r < p {
		return fmt.Errorf("Simulated %s failure: %w", step, ErrInjected)
	}
	return nil
}

// Always 测试用，指定步骤必定失败
func Always(steps ...Step) *Injector {
	probs := make(map[Step]float64, len(steps))
	for _, s := range steps {
		probs[s] = 1
	}
	return New(true, probs, func() float64 { return 0 })
}
