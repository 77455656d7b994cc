package producer

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ChenBigdata421/jxt-railflow/sdk/config"
)

// RateLimiter /trigger 流量控制，保护 broker 不被压测打满
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewRateLimiter 创建流量控制器
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if !cfg.Enabled {
		return &RateLimiter{enabled: false}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.BurstSize),
		enabled: true,
	}
}

// Allow 检查是否允许立即处理（非阻塞）
func (rl *RateLimiter) Allow() bool {
	if rl == nil || !rl.enabled {
		return true
	}
	return rl.limiter.Allow()
}

// Middleware 超出限流时返回 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
