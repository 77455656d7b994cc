package producer

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	ginmiddleware "github.com/slok/go-http-metrics/middleware/gin"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-railflow/sdk/restapi"
)

// TriggerApi GET /trigger
type TriggerApi struct {
	restapi.RestApi
	triggerers []Triggerer
}

// Trigger 依次触发，任一失败返回 500 和原始错误信息
func (e TriggerApi) Trigger(c *gin.Context) {
	for _, t := range e.triggerers {
		if err := t.Trigger(c.Request.Context()); err != nil {
			e.Error(c, http.StatusInternalServerError, err)
			return
		}
	}
	e.Status(c, statusText(e.triggerers))
}

func statusText(triggerers []Triggerer) string {
	if len(triggerers) == 1 {
		return triggerers[0].DisplayName() + " triggered"
	}
	return "Railflow triggered"
}

// RouterOptions 路由参数
type RouterOptions struct {
	Triggerers  []Triggerer
	RateLimiter *RateLimiter
	Registry    *prometheus.Registry // 为空时不挂载 /metrics 和 HTTP 指标
}

// NewRouter 构建 gin 路由：/trigger、/healthz、/metrics
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.SetRequestLogger)

	if opts.Registry != nil {
		mdlw := middleware.New(middleware.Config{
			Recorder: metrics.NewRecorder(metrics.Config{Registry: opts.Registry}),
		})
		r.Use(ginmiddleware.Handler("", mdlw))
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if len(opts.Triggerers) > 0 {
		api := TriggerApi{triggerers: opts.Triggerers}
		r.GET("/trigger", opts.RateLimiter.Middleware(), api.Trigger)
	}
	return r
}
