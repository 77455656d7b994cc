package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 周期结果
const (
	OutcomeIdle    = "idle"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector 周期指标收集接口
type MetricsCollector interface {
	// RecordCycle 记录一次周期的结果和耗时
	RecordCycle(stage, outcome string, duration time.Duration)

	// RecordFailure 记录失败的步骤和分类
	RecordFailure(stage string, step string, class ErrorClass)
}

// NoOpMetricsCollector 不记录任何指标
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordCycle(stage, outcome string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordFailure(stage string, step string, class ErrorClass) {}

// PrometheusMetricsCollector 基于 Prometheus 的周期指标
type PrometheusMetricsCollector struct {
	cycles       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	cycleLatency *prometheus.HistogramVec
}

// NewPrometheusMetricsCollector 创建并注册到 registerer，registerer 为空时不注册
func NewPrometheusMetricsCollector(namespace string, registerer prometheus.Registerer) (*PrometheusMetricsCollector, error) {
	collector := &PrometheusMetricsCollector{}

	collector.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_cycles_total",
			Help:      "Total stage cycles by outcome",
		},
		[]string{"stage", "outcome"},
	)

	collector.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_cycle_failures_total",
			Help:      "Total failed stage cycles by step and error class",
		},
		[]string{"stage", "step", "class"},
	)

	collector.cycleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_cycle_duration_seconds",
			Help:      "Stage cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	if registerer != nil {
		for _, c := range []prometheus.Collector{collector.cycles, collector.failures, collector.cycleLatency} {
			if err := registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return collector, nil
}

func (p *PrometheusMetricsCollector) RecordCycle(stage, outcome string, duration time.Duration) {
	p.cycles.WithLabelValues(stage, outcome).Inc()
	p.cycleLatency.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

func (p *PrometheusMetricsCollector) RecordFailure(stage string, step string, class ErrorClass) {
	p.failures.WithLabelValues(stage, step, string(class)).Inc()
}
