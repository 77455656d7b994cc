package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/logger"
)

type RestApi struct{}

// GetLogger 获取上下文提供的日志器，对GetRequestLogger做封装，可实现解耦。
func (e *RestApi) GetLogger(c *gin.Context) *zap.Logger {
	return logger.GetRequestLogger(c)
}

// Error 返回 {"error": "<message>"}，message 为原始错误信息
func (e *RestApi) Error(c *gin.Context, code int, err error) {
	e.GetLogger(c).Error("request failed", zap.Int("code", code), zap.Error(err))
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// OK 返回 200 和 data
func (e *RestApi) OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Status 返回 {"status": "<msg>"}
func (e *RestApi) Status(c *gin.Context, msg string) {
	e.OK(c, gin.H{"status": msg})
}
