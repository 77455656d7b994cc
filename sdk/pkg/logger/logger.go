package logger

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContextKey string

const (
	TrafficKey ContextKey = "Railflow-Request-Id"
	LoggerKey  ContextKey = "_railflow-zap-logger-request"
)

var (
	Logger        = zap.NewNop()    //全局ZapLogger打印，Setup 之前为空实现
	DefaultLogger = Logger.Sugar() //全局SugarLogger打印，用于简易打印
)

// SetRequestLogger gin 中间件，为每个请求生成 request id 并绑定带 id 的 logger
func SetRequestLogger(c *gin.Context) {
	requestId := c.GetHeader(string(TrafficKey))
	if requestId == "" {
		requestId = uuid.NewString()
	}
	ctx := context.WithValue(c.Request.Context(), TrafficKey, requestId)
	requestLogger := Logger.With(zap.String(string(TrafficKey), requestId))
	ctx = context.WithValue(ctx, LoggerKey, requestLogger)
	c.Request = c.Request.WithContext(ctx)
	c.Header(string(TrafficKey), requestId)
	c.Next()
}

// GetRequestLogger 从上下文获得logger
func GetRequestLogger(c *gin.Context) *zap.Logger {
	return FromContext(c.Request.Context())
}

// FromContext 从 context 中取出 logger，没有则返回全局 logger
func FromContext(ctx context.Context) *zap.Logger {
	requestLogger, ok := ctx.Value(LoggerKey).(*zap.Logger)
	if !ok {
		requestLogger = Logger
	}
	return requestLogger
}

// Named 返回带服务名的子 logger，各个 stage 使用
func Named(service string) *zap.Logger {
	return Logger.With(zap.String("service", service))
}

func Info(args ...interface{}) {
	DefaultLogger.Info(args...)
}

func Infof(template string, args ...interface{}) {
	DefaultLogger.Infof(template, args...)
}

func Debug(args ...interface{}) {
	DefaultLogger.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	DefaultLogger.Debugf(template, args...)
}

func Warn(args ...interface{}) {
	DefaultLogger.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	DefaultLogger.Warnf(template, args...)
}

func Error(args ...interface{}) {
	DefaultLogger.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	DefaultLogger.Errorf(template, args...)
}

func Fatal(args ...interface{}) {
	DefaultLogger.Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	DefaultLogger.Fatalf(template, args...)
	os.Exit(1)
}
