package health

import (
	"context"

	"github.com/nats-io/nats.go"
)

// NATSChecker reports the state of the connection progress events are
// published on.
type NATSChecker struct {
	conn *nats.Conn
}

func NewNATSChecker(conn *nats.Conn) *NATSChecker {
	return &NATSChecker{conn: conn}
}

func (c *NATSChecker) Name() string {
	return "nats"
}

// Check maps the connection status. A reconnecting connection buffers
// publishes, so it counts as degraded.
func (c *NATSChecker) Check(_ context.Context) *Result {
	if c.conn == nil {
		return Unhealthy("no NATS connection")
	}
	status := c.conn.Status()
	switch status {
	case nats.CONNECTED:
		return Healthy("connected").WithDetail("url", c.conn.ConnectedUrlRedacted())
	case nats.RECONNECTING, nats.CONNECTING:
		return Degraded(status.String())
	default:
		return Unhealthy(status.String())
	}
}
