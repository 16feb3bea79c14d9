// Package logging builds the zap logger used across the client.
package logging

import (
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ynotnauk/go-convex/store"
)

var (
	ErrNilAppender error = errors.New("appender cannot be nil")
)

type Options struct {
	// File receives the buffered backlog. Leave blank to log to the console
	// only.
	File          string
	FlushInterval time.Duration
	Level         string
}

// New builds a console logger and, when a file is configured, tees it into a
// Backlog that the caller must run and flush.
func New(options Options) (*zap.Logger, *Backlog, error) {
	level := zapcore.InfoLevel
	if options.Level != "" {
		if err := level.UnmarshalText([]byte(options.Level)); err != nil {
			return nil, nil, err
		}
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)
	if options.File == "" {
		return zap.New(consoleCore), nil, nil
	}
	// Create log store
	logStore, err := store.NewLogFilesystemStore(options.File)
	if err != nil {
		return nil, nil, err
	}
	backlog, err := NewBacklog(logStore, options.FlushInterval)
	if err != nil {
		return nil, nil, err
	}
	backlogCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		backlog,
		level,
	)
	return zap.New(zapcore.NewTee(consoleCore, backlogCore)), backlog, nil
}
