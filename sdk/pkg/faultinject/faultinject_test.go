package faultinject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
)

func TestInjector_Disabled(t *testing.T) {
	var nilInjector *Injector
	assert.NoError(t, nilInjector.Check(StepPublish))
	assert.False(t, nilInjector.Enabled())
	assert.Zero(t, nilInjector.Probability(StepPublish))

	assert.NoError(t, Disabled().Check(StepPublish))

	i := New(false, map[Step]float64{StepPublish: 1}, func() float64 { return 0 })
	assert.NoError(t, i.Check(StepPublish))
}

func TestInjector_Check(t *testing.T) {
	draws := []float64{0.04, 0.06, 0.5}
	next := 0
	i := New(true, map[Step]float64{StepPublish: 0.05}, func() float64 {
		v := draws[next]
		next++
		return v
	})

	err := i.Check(StepPublish)
	assert.True(t, errors.Is(err, ErrInjected))
	assert.Equal(t, "Simulated publish failure: injected fault", err.Error())

	assert.NoError(t, i.Check(StepPublish))
	assert.NoError(t, i.Check(StepPublish))

	// 未配置的步骤不消耗随机数
	assert.NoError(t, i.Check(StepAck))
	assert.Equal(t, 3, next)
}

func TestInjector_Always(t *testing.T) {
	i := Always(StepAck, StepCacheWrite)
	assert.Error(t, i.Check(StepAck))
	assert.Error(t, i.Check(StepCacheWrite))
	assert.NoError(t, i.Check(StepPublish))
}

func TestNewFromConfig(t *testing.T) {
	i := NewFromConfig(config.FaultConfig{
		Enabled:    true,
		Process:    0.12,
		Publish:    0.05,
		Ack:        0.001,
		CacheWrite: 0.10,
		HTTPAccept: 1,
	})
	assert.True(t, i.Enabled())
	assert.Equal(t, 0.12, i.Probability(StepProcess))
	assert.Equal(t, 0.001, i.Probability(StepAck))
	assert.Error(t, i.Check(StepHTTPAccept))
}
