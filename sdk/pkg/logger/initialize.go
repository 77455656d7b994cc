package logger

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	toolsConfig "github.com/ChenBigdata421/jxt-railflow/sdk/config"
)

type LogConfig struct {
	Path          string `yaml:"path"`
	ConsoleOutput bool   `yaml:"console_output"`
	Level         string `yaml:"level"`
	FileOutput    bool   `yaml:"file_output"`
	MaxSize       int    `yaml:"max_size"`
	InfoMaxAge    int    `yaml:"info_max_age"`
	ErrorMaxAge   int    `yaml:"error_max_age"`
	MaxBackups    int    `yaml:"max_backups"`
	Compress      bool   `yaml:"compress"`
}

// Setup 初始化全局日志记录器，放在程序运行前执行
func Setup() {
	cfg := toolsConfig.LoggerConfig
	Init(LogConfig{
		Path:          cfg.Path,
		ConsoleOutput: cfg.Stdout,
		Level:         cfg.Level,
		FileOutput:    cfg.Path != "",
		MaxSize:       cfg.MaxSize,     // 日志文件最大大小，单位MB
		InfoMaxAge:    cfg.InfoMaxAge,  // 保留info日志文件的时间，单位天
		ErrorMaxAge:   cfg.ErrorMaxAge, // 保留error日志文件的时间，单位天
		MaxBackups:    cfg.MaxBackups,
		Compress:      true, // 压缩旧的日志文件
	})
}

// Init 按给定配置构建 Logger / DefaultLogger
func Init(config LogConfig) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// 解析日志级别
	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(config.Level)); err != nil {
		// 默认使用info级别
		logLevel = zapcore.InfoLevel
	}

	var cores []zapcore.Core

	if config.FileOutput {
		// 根据配置的日志级别决定是否添加infoCore
		if logLevel < zapcore.ErrorLevel {
			infoCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				getInfoLogWriter(config),
				zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
					return lvl >= logLevel && lvl < zapcore.ErrorLevel
				}),
			)
			cores = append(cores, infoCore)
		}

		errorCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			getErrorLogWriter(config),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			}),
		)
		cores = append(cores, errorCore)
	}

	// 根据配置决定是否输出到控制台
	if config.ConsoleOutput {
		consoleEncoderConfig := encoderConfig
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stdout),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= logLevel
			}),
		)
		cores = append(cores, consoleCore)
	}

	// 如果没有任何core，添加一个空core防止panic
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(io.Discard),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return false
			}),
		))
	}

	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	DefaultLogger = Logger.Sugar()
}

// 创建info日志文件写入器
func getInfoLogWriter(config LogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(config.Path, "info.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.InfoMaxAge,
		Compress:   config.Compress,
	})
}

// 创建error日志文件写入器
func getErrorLogWriter(config LogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(config.Path, "error.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.ErrorMaxAge,
		Compress:   config.Compress,
	})
}
