// Package logger builds the process logger: coloured console output on
// stdout and, when a directory is configured, a rotated JSON file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger at level. With dir set, events are also
// written as JSON to dir/casinodir.log, rotated by size. The logger is
// installed as the zap global.
func New(level, dir string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	consoleCfg := zap.NewProductionEncoderConfig()
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stdout), lvl),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		sink := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "casinodir.log"),
			MaxSize:    50, // MB
			MaxBackups: 7,
			MaxAge:     14, // days
			Compress:   true,
		}

		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(sink), lvl))
	}

	z := zap.New(zapcore.NewTee(cores...))
	zap.ReplaceGlobals(z)
	return z.Sugar(), nil
}
