// Package events fans streaming export progress out to other processes.
// Events are JSON documents published on NATS subjects of the form
// <prefix>.<run id>.<event type>.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/blueprint/internal/progress"
)

// Type identifies an event.
type Type string

const (
	TypeFileStart    Type = "file-start"
	TypeTokens       Type = "tokens"
	TypeFileComplete Type = "file-complete"
	TypeProgress     Type = "progress"
	TypeFinished     Type = "finished"
)

// Event is one message of a run. Fields not meaningful for Type are empty.
// A finished event carries the archive filename in Path on success.
type Event struct {
	RunID     string             `json:"run_id"`
	Type      Type               `json:"type"`
	Time      time.Time          `json:"time"`
	Kind      string             `json:"kind,omitempty"`
	Path      string             `json:"path,omitempty"`
	Tokens    string             `json:"tokens,omitempty"`
	Content   string             `json:"content,omitempty"`
	Progress  *progress.Progress `json:"progress,omitempty"`
	OK        bool               `json:"ok,omitempty"`
	Error     string             `json:"error,omitempty"`
	Code      string             `json:"code,omitempty"`
	Cancelled bool               `json:"cancelled,omitempty"`
	Mode      string             `json:"mode,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close() error                         { return nil }

type teeSink []Sink

// Tee publishes every event to each of sinks in order. Publish and Close
// visit all sinks and join their errors.
func Tee(sinks ...Sink) Sink {
	return teeSink(sinks)
}

func (t teeSink) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeSink) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
