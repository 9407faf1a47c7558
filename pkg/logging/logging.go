// Package logging is the process-wide leveled logger, backed by zap.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int32

const (
	Error Level = iota
	Warn
	Info
	Debug
)

func (l Level) zap() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // console, json
	OutputPath string // stderr, stdout, or file path
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newDefault()
	sugar  = logger.Sugar()
)

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return enc
}

func newDefault() *zap.Logger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// Init replaces the global logger according to cfg.
func Init(cfg Config) error {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format != "json" {
		format = "console"
	}
	out := cfg.OutputPath
	if out == "" {
		out = "stderr"
	}
	SetLevelFromString(cfg.Level)

	zc := zap.Config{
		Level:             level,
		Encoding:          format,
		EncoderConfig:     encoderConfig(),
		OutputPaths:       []string{out},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     true,
		DisableStacktrace: true,
	}
	l, err := zc.Build()
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger installs l as the global logger. Level filtering still follows
// the global level for the printf-style helpers.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	logger = l
	sugar = l.Sugar()
	mu.Unlock()
}

// L returns the global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// With returns a sugared child logger carrying fields.
func With(fields ...zap.Field) *zap.SugaredLogger {
	return L().With(fields...).Sugar()
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

func SetLevelFromString(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "info", "":
		level.SetLevel(zapcore.InfoLevel)
	case "warn", "warning":
		level.SetLevel(zapcore.WarnLevel)
	case "error", "err":
		level.SetLevel(zapcore.ErrorLevel)
	default:
		// Unknown -> keep current
	}
}

func SetQuiet(quiet bool) {
	if quiet {
		level.SetLevel(zapcore.ErrorLevel)
	}
}

func Enabled(l Level) bool {
	return level.Enabled(l.zap())
}

func Debugf(format string, args ...any) {
	if Enabled(Debug) {
		S().Debugf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if Enabled(Info) {
		S().Infof(format, args...)
	}
}

func Warnf(format string, args ...any) {
	if Enabled(Warn) {
		S().Warnf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if Enabled(Error) {
		S().Errorf(format, args...)
	}
}

// InitFromEnv applies GOFSH_LOG_LEVEL, GOFSH_LOG_FORMAT and GOFSH_QUIET.
func InitFromEnv() {
	if v := os.Getenv("GOFSH_LOG_FORMAT"); v != "" {
		if err := Init(Config{Level: levelName(), Format: v}); err != nil {
			Warnf("invalid log format %q: %v", v, err)
		}
	}
	if v := os.Getenv("GOFSH_LOG_LEVEL"); v != "" {
		SetLevelFromString(v)
	}
	if os.Getenv("GOFSH_QUIET") == "1" || strings.EqualFold(os.Getenv("GOFSH_QUIET"), "true") {
		SetQuiet(true)
	}
}

func levelName() string {
	return level.Level().String()
}

// Field helpers for common fields.
func String(key, val string) zap.Field { return zap.String(key, val) }
