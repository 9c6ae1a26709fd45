// Package logger 基于logrus的结构化日志，输出到控制台和滚动日志文件。
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// 日志级别常量
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Logger 统一日志接口
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})

	// 派生带额外字段的日志器，原日志器不受影响
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

// Config 日志配置
type Config struct {
	Level         string // debug/info/warn/error
	ServiceName   string // 附加到每条日志的service字段
	FilePath      string // 日志文件路径，空则只输出控制台
	ConsoleOutput bool
	JSONFormat    bool
}

// DefaultConfig 默认日志配置
func DefaultConfig() Config {
	return Config{
		Level:         LevelInfo,
		ServiceName:   "publisher-service",
		FilePath:      "logs/publisher-service.log",
		ConsoleOutput: true,
		JSONFormat:    true,
	}
}

// logrusLogger logrus实现
type logrusLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewLogger 创建日志器
func NewLogger(cfg Config) (Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.JSONFormat {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	var writers []io.Writer
	if cfg.ConsoleOutput {
		writers = append(writers, os.Stdout)
	}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		writers = append(writers, file)
	}
	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	return &logrusLogger{
		logger: l,
		fields: logrus.Fields{"service": cfg.ServiceName},
	}, nil
}

// NewNop 创建丢弃所有输出的日志器，测试中使用
func NewNop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusLogger{logger: l, fields: logrus.Fields{}}
}

func (l *logrusLogger) derive(extra logrus.Fields) *logrusLogger {
	fields := make(logrus.Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &logrusLogger{logger: l.logger, fields: fields}
}

// WithField 派生带单个字段的日志器
func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return l.derive(logrus.Fields{key: value})
}

// WithFields 派生带多个字段的日志器
func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(logrus.Fields(fields))
}

// WithError 派生带错误字段的日志器
func (l *logrusLogger) WithError(err error) Logger {
	return l.derive(logrus.Fields{"error": err.Error()})
}

func (l *logrusLogger) Debug(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(format, args...)
}

func (l *logrusLogger) Info(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Infof(format, args...)
}

func (l *logrusLogger) Warn(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(format, args...)
}

func (l *logrusLogger) Error(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(format, args...)
}

func (l *logrusLogger) Fatal(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Fatalf(format, args...)
}

// NewStdLogger 把Logger封装成标准库*log.Logger，
// 供只接受*log.Logger的组件使用，输出按info级别转发
func NewStdLogger(l Logger) *log.Logger {
	return log.New(&stdWriter{l: l}, "", 0)
}

type stdWriter struct {
	l Logger
}

func (w *stdWriter) Write(p []byte) (int, error) {
	w.l.Info("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
