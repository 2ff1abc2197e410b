package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"quote-relay/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger provides named, printf-style logging on top of zap
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

var (
	rootOnce sync.Once
	root     *zap.Logger
)

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. The level is read from a *models.MConfig
// (or anything exposing one); other values fall back to INFO.
func NewLogger(config interface{}, name string) *Logger {
	rootOnce.Do(func() {
		root = newRoot(levelFrom(config))
	})
	return newNamed(root, name)
}

// -----------------------------------------------------------------------------

// NewWithCore builds a Logger on an explicit core (tests use zaptest/observer).
func NewWithCore(core zapcore.Core, name string) *Logger {
	return newNamed(zap.New(core), name)
}

// -----------------------------------------------------------------------------

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return newNamed(zap.NewNop(), "nop")
}

// -----------------------------------------------------------------------------

func newNamed(base *zap.Logger, name string) *Logger {
	named := base.Named(name)
	return &Logger{name: name, base: named, sugar: named.Sugar()}
}

// -----------------------------------------------------------------------------

func newRoot(level zapcore.Level) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)
	// skip the wrapper frame so callers are reported
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
}

// -----------------------------------------------------------------------------

func levelFrom(config interface{}) zapcore.Level {
	var raw string
	switch c := config.(type) {
	case *models.MConfig:
		if c != nil {
			raw = c.LogLevel
		}
	case interface{ Level() string }:
		raw = c.Level()
	case string:
		raw = c
	}
	return ParseLevel(raw)
}

// -----------------------------------------------------------------------------

// ParseLevel maps the config names (DEBUG, INFO, WARNING, ERROR) to zap levels.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Name returns the component name.
func (l *Logger) Name() string {
	return l.name
}

// Zap exposes the underlying logger for middleware such as ginzap.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Errorf("CRITICAL: %s", fmt.Sprintf(format, args...))
	_ = l.base.Sync()
	os.Exit(1)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
