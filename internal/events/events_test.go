package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/progress"
)

// startNATS runs an embedded NATS server on a random IPv4 loopback port.
func startNATS(t *testing.T) string {
	t.Helper()
	s, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		t.Skip("embedded NATS server did not start")
	}
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

type memorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memorySink) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) types() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "blueprint.export.run-1.progress", Subject(DefaultSubjectPrefix, "run-1", TypeProgress))
}

func TestNATSSinkRoundTrip(t *testing.T) {
	url := startNATS(t)

	sink, err := NewNATSSink(url, "bp.test.")
	require.NoError(t, err)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	got := make(chan Event, 4)
	s, err := SubscribeRun(sub, "bp.test", "run-42", func(_ context.Context, e Event) { got <- e })
	require.NoError(t, err)
	require.NoError(t, sub.Flush())
	t.Cleanup(func() { _ = s.Unsubscribe() })

	// Another run on the same prefix is not delivered.
	require.NoError(t, sink.Publish(context.Background(), Event{RunID: "run-7", Type: TypeProgress}))
	require.NoError(t, sink.Publish(context.Background(), Event{
		RunID: "run-42",
		Type:  TypeFileComplete,
		Path:  "PROJECT_RULES.md",
	}))
	require.NoError(t, sink.Close())

	select {
	case e := <-got:
		assert.Equal(t, "run-42", e.RunID)
		assert.Equal(t, TypeFileComplete, e.Type)
		assert.Equal(t, "PROJECT_RULES.md", e.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	assert.Empty(t, got)
}

func TestNewNATSSinkUnreachable(t *testing.T) {
	_, err := NewNATSSink("nats://127.0.0.1:1", "", nats.Timeout(200*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Publish(context.Background(), Event{}))
	assert.NoError(t, s.Close())
}

func TestForwarder(t *testing.T) {
	sink := &memorySink{}
	fw := NewForwarder(context.Background(), sink, "run-1", log.Nop())

	var local []string
	cb := fw.Callbacks(generate.Callbacks{
		OnFileStart: func(a generate.Artifact) { local = append(local, "start:"+a.Path) },
	})

	a := generate.Artifact{Kind: generate.KindProjectRules, Path: "PROJECT_RULES.md"}
	cb.OnFileStart(a)
	cb.OnToken(a, "# Proj")
	cb.OnToken(a, "ect Rules")
	cb.OnFileComplete(a, "# Project Rules")
	cb.OnProgress(progress.Progress{Phase: progress.PhaseProjectRules, FilesCompleted: 1, TotalFiles: 3})
	fw.Finish(Outcome{OK: true, Filename: "shop-blueprint.zip"})

	assert.Equal(t, []string{"start:PROJECT_RULES.md"}, local)
	assert.Equal(t, []Type{TypeFileStart, TypeTokens, TypeFileComplete, TypeProgress, TypeFinished}, sink.types())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "# Project Rules", sink.events[1].Tokens, "tokens are batched per file")
	assert.Equal(t, "PROJECT_RULES.md", sink.events[1].Path)
	assert.Equal(t, "# Project Rules", sink.events[2].Content)
	require.NotNil(t, sink.events[3].Progress)
	assert.Equal(t, 1, sink.events[3].Progress.FilesCompleted)
	assert.True(t, sink.events[4].OK)
	assert.Equal(t, "shop-blueprint.zip", sink.events[4].Path)
	for _, e := range sink.events {
		assert.Equal(t, "run-1", e.RunID)
		assert.False(t, e.Time.IsZero())
	}
}

func TestForwarderIgnoresSinkErrors(t *testing.T) {
	sink := &memorySink{err: errors.New("broker down")}
	fw := NewForwarder(context.Background(), sink, "run-2", log.Nop())
	cb := fw.Callbacks(generate.Callbacks{})

	assert.NotPanics(t, func() {
		cb.OnProgress(progress.Progress{Phase: progress.PhaseIdle})
		fw.Finish(Outcome{Error: "boom", Code: "EXPORT-004"})
	})
	assert.Equal(t, []Type{TypeProgress, TypeFinished}, sink.types())
}

func TestTee(t *testing.T) {
	a := &memorySink{}
	b := &memorySink{err: errors.New("broker down")}
	c := &memorySink{}
	sink := Tee(a, b, c)

	err := sink.Publish(context.Background(), Event{Type: TypeProgress})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, []Type{TypeProgress}, a.types())
	assert.Equal(t, []Type{TypeProgress}, c.types(), "a failing sink does not starve later ones")
	assert.NoError(t, sink.Close())
}
