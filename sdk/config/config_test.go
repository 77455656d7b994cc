package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_DefaultsWithoutFile 没有配置文件时仅靠默认值和环境变量
func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Queue.Type)
	assert.Equal(t, "123", cfg.Pipeline.TrainID)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Backoff)
	assert.False(t, cfg.Pipeline.Faults.Enabled)
	assert.InDelta(t, 0.12, cfg.Pipeline.Faults.Process, 1e-9)
	assert.InDelta(t, 0.05, cfg.Pipeline.Faults.Publish, 1e-9)
	assert.InDelta(t, 0.001, cfg.Pipeline.Faults.Ack, 1e-9)
	assert.InDelta(t, 0.10, cfg.Pipeline.Faults.CacheWrite, 1e-9)
	assert.InDelta(t, 0.10, cfg.Pipeline.Faults.HTTPAccept, 1e-9)
	assert.Equal(t, "@every 2s", cfg.LoadGen.Schedule)
	assert.Len(t, cfg.LoadGen.Targets, 4)
}

// TestLoad_EnvOverrides 环境变量覆盖
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAILFLOW_QUEUE_TYPE", "nats")
	t.Setenv("RAILFLOW_QUEUE_NATS_URLS", "nats://a:4222,nats://b:4222")
	t.Setenv("RAILFLOW_QUEUE_NATS_USERNAME", "admin")
	t.Setenv("RAILFLOW_PIPELINE_BACKOFF", "250ms")
	t.Setenv("RAILFLOW_PIPELINE_FAULTS_PUBLISH", "0.5")
	t.Setenv("RAILFLOW_QUEUE_NATS_JETSTREAM_ACKWAIT", "7s")
	t.Setenv("RAILFLOW_QUEUE_NATS_MAXRECONNECTS", "-1")
	t.Setenv("RAILFLOW_QUEUE_NSQ_MAXINFLIGHT", "9")
	t.Setenv("RAILFLOW_QUEUE_NSQ_MSGTIMEOUT", "45s")
	t.Setenv("RAILFLOW_HTTP_MAXHEADERBYTES", "2")
	t.Setenv("SERVICE_NAME", "aggregation")
	t.Setenv("REDIS_HOST", "redis")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats", cfg.Queue.Type)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Queue.NATS.URLs)
	assert.Equal(t, "admin", cfg.Queue.NATS.Username)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Backoff)
	assert.InDelta(t, 0.5, cfg.Pipeline.Faults.Publish, 1e-9)
	assert.Equal(t, "aggregation", cfg.Pipeline.ServiceName)
	assert.Equal(t, 7*time.Second, cfg.Queue.NATS.JetStream.AckWait)
	assert.Equal(t, -1, cfg.Queue.NATS.MaxReconnects)
	assert.Equal(t, 9, cfg.Queue.NSQ.MaxInFlight)
	assert.Equal(t, 45*time.Second, cfg.Queue.NSQ.MsgTimeout)
	assert.Equal(t, 2, cfg.HTTP.MaxHeaderBytes)

	require.NotNil(t, cfg.Cache.Redis)
	opts, err := cfg.Cache.Redis.GetRedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", opts.Addr)

	// nats 默认值在 SetDefaults 中补齐
	assert.Equal(t, 200*time.Millisecond, cfg.Queue.NATS.JetStream.FetchWait)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_File 从 yaml 文件读取
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "settings.yml")
	content := `
application:
  name: railflow-test
queue:
  type: nsq
  nsq:
    nsqdAddr: nsqd:4150
pipeline:
  serviceName: processing
  backoff: 1s
  faults:
    enabled: true
    ack: 0
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "railflow-test", cfg.Application.Name)
	assert.Equal(t, "nsq", cfg.Queue.Type)
	assert.Equal(t, "nsqd:4150", cfg.Queue.NSQ.NSQDAddr)
	assert.Equal(t, 1, cfg.Queue.NSQ.MaxInFlight)
	assert.Equal(t, time.Second, cfg.Pipeline.Backoff)
	assert.True(t, cfg.Pipeline.Faults.Enabled)
	// 显式写 0 的概率不会被默认值覆盖
	assert.Equal(t, 0.0, cfg.Pipeline.Faults.Ack)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_MissingFile 配置文件不存在
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "读取配置文件失败")
}

// TestSetup_AssignsGlobals Setup 写入全局配置
func TestSetup_AssignsGlobals(t *testing.T) {
	t.Setenv("RAILFLOW_PIPELINE_SERVICENAME", "train-management")
	require.NoError(t, Setup(""))
	assert.Equal(t, "train-management", PipelineConfig.ServiceName)
	assert.Same(t, PipelineConfig, AppConfig.Pipeline)
}

// TestQueueConfig_Validate 队列配置验证
func TestQueueConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  QueueConfig
		wantErr bool
		errMsg  string
	}{
		{name: "memory", config: QueueConfig{Type: "memory"}},
		{name: "nats defaults", config: QueueConfig{Type: "nats"}},
		{name: "nsq defaults", config: QueueConfig{Type: "nsq"}},
		{name: "unsupported", config: QueueConfig{Type: "kafka"}, wantErr: true, errMsg: "unsupported queue type"},
		{
			name:    "bad storage",
			config:  QueueConfig{Type: "nats", NATS: NATSConfig{JetStream: JetStreamConfig{Storage: "disk"}}},
			wantErr: true,
			errMsg:  "unsupported jetstream storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.SetDefaults()
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPipeline_Validate(t *testing.T) {
	Convey("Pipeline 配置验证", t, func() {

		Convey("默认值", func() {
			p := &Pipeline{ServiceName: "aggregation"}
			p.SetDefaults()
			So(p.TrainID, ShouldEqual, "123")
			So(p.Backoff, ShouldEqual, 5*time.Second)
			So(p.Validate(), ShouldBeNil)
		})

		Convey("缺少服务名", func() {
			p := &Pipeline{}
			p.SetDefaults()
			So(p.Validate(), ShouldNotBeNil)
		})

		Convey("概率超出范围", func() {
			p := &Pipeline{ServiceName: "aggregation", Faults: FaultConfig{Publish: 1.5}}
			p.SetDefaults()
			err := p.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "publish")
		})

		Convey("开启限流时补齐默认值", func() {
			p := &Pipeline{ServiceName: "train", RateLimit: RateLimitConfig{Enabled: true}}
			p.SetDefaults()
			So(p.RateLimit.RatePerSecond, ShouldEqual, 50)
			So(p.RateLimit.BurstSize, ShouldEqual, 10)
			So(p.Validate(), ShouldBeNil)
		})
	})
}

func TestRedisConnectOptions(t *testing.T) {
	Convey("Redis 连接参数", t, func() {

		Convey("优先使用 Addr", func() {
			opts, err := RedisConnectOptions{Addr: "cache:6380", Host: "ignored", Password: "password"}.GetRedisOptions()
			So(err, ShouldBeNil)
			So(opts.Addr, ShouldEqual, "cache:6380")
			So(opts.Password, ShouldEqual, "password")
		})

		Convey("Host 缺省端口", func() {
			opts, err := RedisConnectOptions{Host: "redis"}.GetRedisOptions()
			So(err, ShouldBeNil)
			So(opts.Addr, ShouldEqual, "redis:6379")
		})

		Convey("都为空时报错", func() {
			_, err := RedisConnectOptions{}.GetRedisOptions()
			So(err, ShouldNotBeNil)
		})

		Convey("未配置 redis 时回退到内存缓存", func() {
			c, err := Cache{}.Setup()
			So(err, ShouldBeNil)
			So(c, ShouldNotBeNil)
		})
	})
}
