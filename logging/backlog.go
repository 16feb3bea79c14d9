package logging

import (
	"bytes"
	"context"
	"sync"
	"time"
)

const DefaultFlushInterval time.Duration = 5 * time.Second

// Appender persists a chunk of encoded log output.
type Appender interface {
	Append(contents []byte) error
}

// Backlog buffers encoded log entries in memory and hands them to an Appender
// when flushed. It implements zapcore.WriteSyncer.
type Backlog struct {
	appender Appender
	buffer   bytes.Buffer
	interval time.Duration
	mu       sync.Mutex
}

// Flush writes everything buffered so far. On failure the entries are kept
// and retried on the next flush.
func (b *Backlog) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer.Len() == 0 {
		return nil
	}
	if err := b.appender.Append(b.buffer.Bytes()); err != nil {
		return err
	}
	b.buffer.Reset()
	return nil
}

func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Len()
}

// Run flushes on every interval until ctx is done, then flushes one last time.
func (b *Backlog) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return b.Flush()
		case <-ticker.C:
			// Errors are retried on the next tick
			_ = b.Flush()
		}
	}
}

func (b *Backlog) Sync() error {
	return b.Flush()
}

func (b *Backlog) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func NewBacklog(appender Appender, interval time.Duration) (*Backlog, error) {
	if appender == nil {
		return nil, ErrNilAppender
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	backlog := &Backlog{
		appender: appender,
		interval: interval,
	}
	return backlog, nil
}
