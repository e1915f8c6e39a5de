package telemetry

import (
	"fmt"
	"net/url"
	"strings"
)

// Config describes where the CLI sends its traces.
type Config struct {
	// ServiceVersion is reported as service.version on every span.
	ServiceVersion string

	// Command is the blueprint subcommand the process runs.
	Command string

	// Endpoint is the OTLP/HTTP collector as host:port. Empty disables tracing.
	Endpoint string

	// URLPath overrides the exporter's default /v1/traces path.
	URLPath string

	// Insecure sends spans over plain HTTP.
	Insecure bool

	// SampleRatio is the fraction of root spans kept, between 0 and 1.
	SampleRatio float64
}

// Enabled reports whether spans are exported at all.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// ParseEndpoint builds a Config from the --trace-endpoint value. It accepts
// a bare host:port (TLS) or an http(s) URL, whose scheme picks the transport
// and whose path, when set, replaces /v1/traces.
func ParseEndpoint(raw string) (Config, error) {
	cfg := Config{SampleRatio: 1}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return cfg, nil
	}
	if !strings.Contains(raw, "://") {
		cfg.Endpoint = raw
		return cfg, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return cfg, fmt.Errorf("invalid trace endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		cfg.Insecure = true
	case "https":
	default:
		return cfg, fmt.Errorf("invalid trace endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return cfg, fmt.Errorf("invalid trace endpoint %q: missing host", raw)
	}
	cfg.Endpoint = u.Host
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		cfg.URLPath = p
	}
	return cfg, nil
}
