// Package logger wraps zap with the runtime level-switching and optional
// rotating file sink the rest of Apate expects from its ambient logging
// layer.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// RotationConfig controls lumberjack's rotation policy for the optional
// file sink.
type RotationConfig struct {
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Config configures a DynamicLogger. Level governs both console and file
// output; there is no separate level for the file sink.
type Config struct {
	Level    string
	JSON     bool
	FilePath string
	Rotation RotationConfig
}

// DynamicLogger wraps *zap.Logger with an AtomicLevel so SetLevel can change
// verbosity at runtime without rebuilding the logger. The `-l` flag only
// sets the initial level when main constructs the logger.
type DynamicLogger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// SetLevel changes the effective log level at runtime.
func (dl *DynamicLogger) SetLevel(level string) {
	dl.level.SetLevel(parseLevel(level))
}

// New creates a DynamicLogger: always a console sink, plus a rotating file
// sink when cfg.FilePath is set.
func New(cfg Config) (*DynamicLogger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(encoderFor(cfg.JSON, false), zapcore.Lock(os.Stdout), level))

	if cfg.FilePath != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.Rotation.MaxSizeMB, 100),
			MaxAge:     cfg.Rotation.MaxAgeDays,
			MaxBackups: cfg.Rotation.MaxBackups,
			Compress:   cfg.Rotation.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoderFor(cfg.JSON, true), fileWriter, level))
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return &DynamicLogger{Logger: zap.New(core), level: level}, nil
}

// NewDefault creates an info-level, console-only, human-formatted logger
// for use before CLI flags are parsed.
func NewDefault() *DynamicLogger {
	l, err := New(Config{Level: LevelInfo})
	if err != nil {
		// New never fails with a console-only config.
		panic(fmt.Sprintf("logger: unexpected error building default logger: %v", err))
	}
	return l
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func encoderFor(json bool, plain bool) zapcore.Encoder {
	if json {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if plain {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
