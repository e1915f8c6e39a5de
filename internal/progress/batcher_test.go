package progress

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches []string
}

func (r *flushRecorder) flush(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, s)
}

func (r *flushRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.batches...)
}

func TestTokenBatcher_CoalescesWithinInterval(t *testing.T) {
	rec := &flushRecorder{}
	b := NewTokenBatcher(time.Hour, rec.flush)

	for _, tok := range []string{"a", "b", "c"} {
		b.Add(tok)
	}
	assert.Empty(t, rec.snapshot(), "nothing should flush before the timer fires")

	b.Flush()
	assert.Equal(t, []string{"abc"}, rec.snapshot())
}

func TestTokenBatcher_TimerFlushes(t *testing.T) {
	rec := &flushRecorder{}
	b := NewTokenBatcher(10*time.Millisecond, rec.flush)
	defer b.Stop()

	b.Add("hello ")
	b.Add("world")

	assert.Eventually(t, func() bool {
		return strings.Join(rec.snapshot(), "") == "hello world"
	}, time.Second, 5*time.Millisecond)
}

func TestTokenBatcher_StopFlushesAndIgnoresLaterTokens(t *testing.T) {
	rec := &flushRecorder{}
	b := NewTokenBatcher(time.Hour, rec.flush)

	b.Add("tail")
	b.Stop()
	b.Add("ignored")
	b.Flush()

	assert.Equal(t, []string{"tail"}, rec.snapshot())
}

func TestTokenBatcher_DefaultsAndEmptyTokens(t *testing.T) {
	rec := &flushRecorder{}
	b := NewTokenBatcher(0, rec.flush)
	assert.Equal(t, DefaultFlushInterval, b.interval)

	b.Add("")
	b.Flush()
	assert.Empty(t, rec.snapshot())
}

func TestTokenBatcher_PreservesOrderUnderConcurrentFlush(t *testing.T) {
	rec := &flushRecorder{}
	b := NewTokenBatcher(time.Millisecond, rec.flush)

	var want strings.Builder
	for i := 0; i < 200; i++ {
		tok := string(rune('a' + i%26))
		want.WriteString(tok)
		b.Add(tok)
		if i%17 == 0 {
			b.Flush()
		}
	}
	b.Stop()

	assert.Equal(t, want.String(), strings.Join(rec.snapshot(), ""))
}
