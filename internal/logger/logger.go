// Package logger builds the process logger: JSON lines to a rotated file,
// optionally teed to a console encoder on stdout.
package logger

import (
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/redirect10-prog/siteForge-ai/config"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

// New returns a logger for cfg and installs it with zap.ReplaceGlobals.
// With no file configured it logs JSON to stdout.
func New(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	enc := encoderConfig()

	var cores []zapcore.Core
	errOut := zapcore.AddSync(os.Stderr)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, err
		}
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, level))
		errOut = sink
		if cfg.Console {
			cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stdout), level))
		}
	} else {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(os.Stdout), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(errOut))
	zap.ReplaceGlobals(log)
	log.Info("logger online", zap.String("level", level.String()), zap.Bool("file", cfg.File != ""))
	return log, nil
}
