package logger

import (
	"strings"

	"go.uber.org/zap"
)

// NSQLogger 把 go-nsq 的 Output(calldepth, s) 日志接口桥接到 zap
type NSQLogger struct {
	ZapLogger *zap.Logger
}

// NewNSQLogger 创建 nsq 日志桥接器
func NewNSQLogger(baseLogger *zap.Logger) *NSQLogger {
	return &NSQLogger{ZapLogger: baseLogger.Named("nsq")}
}

// Output 实现 go-nsq logger 接口
// go-nsq 的日志格式为 "INF    1 [topic/channel] ..."，按前缀映射到 zap 级别
func (l *NSQLogger) Output(calldepth int, s string) error {
	level, msg := splitNSQLevel(s)
	switch level {
	case "DBG":
		l.ZapLogger.Debug(msg)
	case "WRN":
		l.ZapLogger.Warn(msg)
	case "ERR":
		l.ZapLogger.Error(msg)
	default:
		l.ZapLogger.Info(msg)
	}
	return nil
}

func splitNSQLevel(s string) (string, string) {
	s = strings.TrimSpace(s)
	if len(s) >= 3 {
		switch s[:3] {
		case "DBG", "INF", "WRN", "ERR":
			return s[:3], strings.TrimSpace(s[3:])
		}
	}
	return "INF", s
}
