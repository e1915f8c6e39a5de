package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for blueprint
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	CommandErrors     *prometheus.CounterVec

	// Provider operation metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderErrors   *prometheus.CounterVec
	ProviderTokens   *prometheus.CounterVec
	ProviderInFlight prometheus.Gauge

	// Artifact generation metrics
	ArtifactGenerations *prometheus.CounterVec
	ArtifactDuration    *prometheus.HistogramVec
	ArtifactBytes       *prometheus.HistogramVec

	// Export metrics
	Exports        *prometheus.CounterVec
	ExportDuration *prometheus.HistogramVec
	ExportNodes    prometheus.Histogram
	ArchiveBytes   prometheus.Histogram

	// Response cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Publishing metrics
	Publishes       *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec

	// HTTP service metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StreamSessions      prometheus.Gauge

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Command metrics
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		CommandErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_command_errors_total",
				Help: "Total number of command errors",
			},
			[]string{"command", "error_code"},
		),

		// Provider metrics
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_provider_calls_total",
				Help: "Total number of AI provider API calls",
			},
			[]string{"provider", "model", "success"},
		),
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_provider_latency_seconds",
				Help:    "AI provider API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider", "model"},
		),
		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_provider_errors_total",
				Help: "Total number of AI provider errors",
			},
			[]string{"provider", "model", "error_type"},
		),
		ProviderTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_provider_tokens_total",
				Help: "Total tokens consumed by AI provider calls",
			},
			[]string{"provider", "model", "token_type"},
		),
		ProviderInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "blueprint_provider_requests_in_flight",
				Help: "AI provider requests currently in flight",
			},
		),

		// Artifact metrics
		ArtifactGenerations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_artifact_generations_total",
				Help: "Total number of generated blueprint documents",
			},
			[]string{"kind", "source", "success"},
		),
		ArtifactDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_artifact_duration_seconds",
				Help:    "Time to generate a single blueprint document",
				Buckets: []float64{0.01, 0.1, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"kind", "source"},
		),
		ArtifactBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_artifact_bytes",
				Help:    "Size of generated blueprint documents",
				Buckets: prometheus.ExponentialBuckets(256, 2, 10),
			},
			[]string{"kind"},
		),

		// Export metrics
		Exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_exports_total",
				Help: "Total number of export attempts",
			},
			[]string{"mode", "result"},
		),
		ExportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_export_duration_seconds",
				Help:    "Export duration in seconds",
				Buckets: []float64{0.01, 0.1, 1.0, 10.0, 30.0, 60.0, 120.0, 300.0},
			},
			[]string{"mode"},
		),
		ExportNodes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blueprint_export_nodes",
				Help:    "Number of components in exported diagrams",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
			},
		),
		ArchiveBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blueprint_archive_bytes",
				Help:    "Size of produced blueprint archives",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
			},
		),

		// Cache metrics
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		// Publishing metrics
		Publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_publishes_total",
				Help: "Total number of archive publish attempts",
			},
			[]string{"target", "success"},
		),
		PublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_publish_duration_seconds",
				Help:    "Archive publish duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"route", "method", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		StreamSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "blueprint_stream_sessions",
				Help: "Websocket streaming exports currently open",
			},
		),

		// Error metrics
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// RecordProviderCall records one provider round trip.
func (m *Metrics) RecordProviderCall(provider, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(provider, model, boolLabel(err == nil)).Inc()
	m.ProviderLatency.WithLabelValues(provider, model).Observe(d.Seconds())
}

// RecordArtifact records one generated document.
func (m *Metrics) RecordArtifact(kind, source string, d time.Duration, size int, err error) {
	if m == nil {
		return
	}
	m.ArtifactGenerations.WithLabelValues(kind, source, boolLabel(err == nil)).Inc()
	m.ArtifactDuration.WithLabelValues(kind, source).Observe(d.Seconds())
	if err == nil {
		m.ArtifactBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// RecordExport records the outcome of one export.
func (m *Metrics) RecordExport(mode, result string, d time.Duration, nodes, archiveBytes int) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(mode, result).Inc()
	m.ExportDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.ExportNodes.Observe(float64(nodes))
	if archiveBytes > 0 {
		m.ArchiveBytes.Observe(float64(archiveBytes))
	}
}

// RecordHTTPRequest records one request served by the HTTP service.
func (m *Metrics) RecordHTTPRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// StreamOpened tracks a websocket export session; call the returned func when
// it ends.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.StreamSessions.Inc()
	return m.StreamSessions.Dec
}

// RecordError counts an error by its code. Uncoded errors are ignored.
func (m *Metrics) RecordError(code string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}

func boolLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
