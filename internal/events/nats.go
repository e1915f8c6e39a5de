package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "blueprint.export"

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Subject returns the subject an event of type t for runID is published on.
func Subject(prefix, runID string, t Type) string {
	return fmt.Sprintf("%s.%s.%s", prefix, runID, t)
}

// NATSSink publishes events to NATS with trace context in the headers.
type NATSSink struct {
	nc       *nats.Conn
	prefix   string
	ownsConn bool
}

// NewNATSSink connects to url. The sink owns the connection and drains it on
// Close.
func NewNATSSink(url, prefix string, opts ...nats.Option) (*NATSSink, error) {
	opts = append([]nats.Option{
		nats.Name("blueprint"),
		nats.Timeout(5 * time.Second),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	s := NewNATSSinkConn(nc, prefix)
	s.ownsConn = true
	return s, nil
}

// NewNATSSinkConn publishes on an existing connection, which the caller keeps
// ownership of.
func NewNATSSinkConn(nc *nats.Conn, prefix string) *NATSSink {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{nc: nc, prefix: prefix}
}

// Publish serializes e and publishes it. Delivery is fire-and-forget.
func (s *NATSSink) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := &nats.Msg{
		Subject: Subject(s.prefix, e.RunID, e.Type),
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return s.nc.PublishMsg(msg)
}

// Close drains the connection if the sink opened it, and flushes otherwise.
func (s *NATSSink) Close() error {
	if s.ownsConn {
		return s.nc.Drain()
	}
	return s.nc.Flush()
}

// SubscribeRun delivers every event of runID to handler. Malformed messages
// are dropped.
func SubscribeRun(nc *nats.Conn, prefix, runID string, handler func(context.Context, Event)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return nc.Subscribe(prefix+"."+runID+".>", func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, e)
	})
}
