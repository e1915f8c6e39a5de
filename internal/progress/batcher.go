package progress

import (
	"strings"
	"sync"
	"time"
)

// DefaultFlushInterval bounds how often batched tokens reach the display.
const DefaultFlushInterval = 50 * time.Millisecond

// TokenBatcher coalesces high-frequency token deltas and hands them to flush
// at most once per interval. Add never blocks on flush.
type TokenBatcher struct {
	interval time.Duration
	flush    func(string)

	flushMu sync.Mutex // keeps flushes in order
	mu      sync.Mutex
	buf     strings.Builder
	timer   *time.Timer
	stopped bool
}

// NewTokenBatcher creates a batcher. A non-positive interval uses
// DefaultFlushInterval.
func NewTokenBatcher(interval time.Duration, flush func(string)) *TokenBatcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &TokenBatcher{interval: interval, flush: flush}
}

// Add buffers token and arms the flush timer if it is not already armed.
func (b *TokenBatcher) Add(token string) {
	if token == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.buf.WriteString(token)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.Flush)
	}
}

// Flush delivers everything buffered so far.
func (b *TokenBatcher) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	pending := b.buf.String()
	b.buf.Reset()
	b.mu.Unlock()

	if pending != "" && b.flush != nil {
		b.flush(pending)
	}
}

// Stop flushes what remains and ignores later Adds.
func (b *TokenBatcher) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.Flush()
}
