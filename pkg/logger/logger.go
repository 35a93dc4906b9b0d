// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger sets up the process wide zap logger and hands out named component loggers.
package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the encoder of the log output.
type Format string

const (
	FormatConsole Format = "CONSOLE"
	FormatJSON    Format = "JSON"
)

// Options are read from LOGGING_LEVEL and LOGGING_FORMAT.
type Options struct {
	Level  zapcore.Level
	Format Format
}

var initOnce sync.Once

// OptionsFromEnv reads the logging options. Unknown values fall back to info level and the
// console format.
func OptionsFromEnv() Options {
	opts := Options{Level: zapcore.InfoLevel, Format: FormatConsole}

	if raw, err := env.GetAsString("LOGGING_LEVEL", false, ""); err == nil && raw != "" {
		if level, err := zapcore.ParseLevel(raw); err == nil {
			opts.Level = level
		}
	}
	if raw, err := env.GetAsString("LOGGING_FORMAT", false, ""); err == nil {
		if Format(strings.ToUpper(raw)) == FormatJSON {
			opts.Format = FormatJSON
		}
	}

	return opts
}

func consoleTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05 MST"))
}

// New builds a logger writing to stdout.
func New(opts Options) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	switch opts.Format {
	case FormatJSON:
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	default:
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = consoleTime
		cfg.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(opts.Level)), zap.AddCaller())
}

// Initialize replaces the zap globals once per process. Later calls are no-ops.
func Initialize() {
	initOnce.Do(func() {
		opts := OptionsFromEnv()
		log := New(opts)
		zap.ReplaceGlobals(log)

		log.Info("Logger initialized", zap.Stringer("level", opts.Level), zap.String("format", string(opts.Format)))
	})
}

// GetLogger returns the global logger.
func GetLogger() *zap.Logger {
	Initialize()

	return zap.L()
}

// Sync flushes buffered entries.
func Sync() error {
	return zap.L().Sync()
}

// For returns the logger of a component.
func For(component string) *zap.SugaredLogger {
	Initialize()

	return zap.S().Named(component)
}
