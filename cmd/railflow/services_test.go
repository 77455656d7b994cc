package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/cache"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/message"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/producer"
	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/queue"
	"github.com/ChenBigdata421/jxt-railflow/sdk/runtime"
	"github.com/ChenBigdata421/jxt-railflow/sdk/service"
)

func setupConfig(t *testing.T) {
	t.Helper()
	require.NoError(t, config.Setup(""))
	config.HttpConfig.Enabled = false
	config.PipelineConfig.Backoff = 10 * time.Millisecond
	config.LoadGenConfig.Schedule = "@every 1h"
}

func newApp() *runtime.Application {
	app := runtime.NewConfig()
	app.SetCacheAdapter(cache.NewMemory())
	return app
}

func TestBuild_SingleServices(t *testing.T) {
	setupConfig(t)

	tests := []struct {
		name   string
		tasks  []string
		queues []string
	}{
		{"aggregation", []string{"AggregationEngine"}, []string{"AggregationEngine"}},
		{"train-management", []string{"FanoutDispatcher"}, []string{"FanoutDispatcher", "TrainManagementService"}},
		{"processing", []string{"ProcessingService"}, []string{"ProcessingService"}},
		{"notification", []string{"NotificationService"}, []string{"NotificationService"}},
		{"ticket", []string{}, []string{"TicketService"}},
		{"loadgen", []string{"loadgen"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp()
			defer app.Close()
			require.NoError(t, build(context.Background(), app, tt.name))

			assert.ElementsMatch(t, tt.tasks, app.GetTasks())
			for _, name := range tt.queues {
				assert.NotNil(t, app.GetQueueAdapter(name), name)
			}
		})
	}
}

func TestBuild_UnknownService(t *testing.T) {
	setupConfig(t)
	app := newApp()
	err := build(context.Background(), app, "billing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregation|")
}

func TestBuild_HTTP(t *testing.T) {
	setupConfig(t)
	config.HttpConfig.Enabled = true
	config.HttpConfig.Port = 0

	app := newApp()
	defer app.Close()
	require.NoError(t, build(context.Background(), app, "ticket"))

	assert.Contains(t, app.GetTasks(), "http")
	paths := map[string]bool{}
	for _, r := range app.GetRouter() {
		paths[r.RelativePath] = true
	}
	assert.True(t, paths["/trigger"])
	assert.True(t, paths["/healthz"])
	assert.True(t, paths["/metrics"])
}

// TestBuild_AllOverMemoryBroker 一个进程内跑完 train management -> notification 全链路
func TestBuild_AllOverMemoryBroker(t *testing.T) {
	setupConfig(t)
	app := newApp()
	defer app.Close()
	require.NoError(t, build(context.Background(), app, "all"))
	assert.ElementsMatch(t, []string{"AggregationEngine", "FanoutDispatcher", "ProcessingService", "NotificationService", "loadgen"}, app.GetTasks())

	broker := app.GetMemoryBroker()
	mem := app.GetCacheAdapter().(*cache.Memory)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	tm := producer.New(service.Service{Name: "test", Queue: queue.NewMemoryClient(broker), Cache: mem}, producer.TrainManagementProfile)
	require.NoError(t, tm.Setup(context.Background()))
	require.NoError(t, tm.Trigger(context.Background()))

	assert.Eventually(t, func() bool {
		_, ok := mem.Get(cache.KeyNotification)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	body, _ := mem.Get(cache.KeyNotification)
	note := message.Decode(body)
	assert.Contains(t, note.String("message"), "Your train (ID: 123)")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	_ = tm.Close()
}
