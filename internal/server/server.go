// Package server exposes blueprint over HTTP.
//
// Besides the export API it keeps the deployment surface of a long-running
// service:
//   - Kubernetes-style health probes (liveness, readiness, startup)
//   - Prometheus metrics and OpenTelemetry request spans
//   - Graceful shutdown that drains requests and streaming sessions
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/internal/health"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

// DefaultMaxBodyBytes bounds request bodies and websocket messages.
const DefaultMaxBodyBytes = 1 << 20

// Server is the blueprint HTTP service.
type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	probeManager    *health.ProbeManager
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
	maxBodyBytes    int64

	exporter     *export.Exporter
	aiDefaults   provider.Settings
	nc           *nats.Conn
	eventsPrefix string
	logger       *log.Logger
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	upgrader     websocket.Upgrader
	now          func() time.Time

	// streams counts hijacked websocket sessions, which http.Server.Shutdown
	// does not wait for.
	streams sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":8080", "0.0.0.0:8080")
	Address string

	// ShutdownTimeout is the maximum time to wait for connections and
	// streaming exports to drain. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 30 seconds.
	ReadTimeout time.Duration

	// WriteTimeout must cover a full AI export. Defaults to 5 minutes.
	WriteTimeout time.Duration

	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration

	// MaxBodyBytes defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithExporter sets the exporter used by the export endpoints.
func WithExporter(e *export.Exporter) Option {
	return func(s *Server) { s.exporter = e }
}

// WithProviderDefaults sets the provider, model, and key applied to AI
// export requests that leave them empty.
func WithProviderDefaults(settings provider.Settings) Option {
	return func(s *Server) { s.aiDefaults = settings }
}

// WithNATS mirrors streaming export events onto NATS.
func WithNATS(nc *nats.Conn, subjectPrefix string) Option {
	return func(s *Server) {
		s.nc = nc
		s.eventsPrefix = subjectPrefix
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request metrics to m and serves gatherer on /metrics.
// A nil gatherer serves the default registry.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// NewServer creates the HTTP service with health, metrics, and export routes.
func NewServer(probeManager *health.ProbeManager, cfg Config, opts ...Option) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		probeManager:    probeManager,
		shutdownTimeout: cfg.ShutdownTimeout,
		maxBodyBytes:    cfg.MaxBodyBytes,
		now:             time.Now,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.DefaultLogger()
	}
	if s.exporter == nil {
		s.exporter = export.New(export.WithLogger(s.logger), export.WithMetrics(s.metrics))
	}

	mux := http.NewServeMux()

	s.route(mux, "GET /health/live", s.handleLiveness)
	s.route(mux, "GET /health/ready", s.handleReadiness)
	s.route(mux, "GET /health/startup", s.handleStartup)
	s.route(mux, "GET "+types.PathHealth, s.handleReadiness)
	mux.Handle("GET /metrics", metrics.Handler(s.gatherer))

	s.route(mux, "POST "+types.PathValidate, s.handleValidate)
	s.route(mux, "POST "+types.PathAutoEdges, s.handleAutoEdges)
	s.route(mux, "POST "+types.PathExport, s.handleExport)
	s.route(mux, "GET "+types.PathExportStream, s.handleExportStream)

	s.handler = otelhttp.NewHandler(mux, "blueprint",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// route registers h under pattern and records request metrics labelled with
// the pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.RecordHTTPRequest(pattern, r.Method, rec.status, time.Since(start))
	}))
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.probeManager.MarkInitialized()
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	s.probeManager.MarkInitialized()
	return s.httpServer.Serve(l)
}

// Shutdown performs graceful shutdown of the HTTP server.
//
// It:
//  1. Marks the server as shutting down (readiness probes will fail)
//  2. Disables HTTP keep-alives to stop accepting new requests
//  3. Waits for requests and streaming exports to finish (up to ShutdownTimeout)
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probeManager.MarkShutdown()

	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		return shutdownCtx.Err()
	}
}

func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// writeProbeResponse writes result with 200, or unhealthyStatus when the
// probe failed.
func (s *Server) writeProbeResponse(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = unhealthyStatus
	}
	s.writeJSON(w, status, result)
}

// handleLiveness always answers 200, even while draining.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckLiveness(r.Context()), http.StatusOK)
}

// handleReadiness answers 503 while shutting down or when a dependency is
// unhealthy. A degraded provider still serves template exports, so it stays
// ready.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckReadiness(r.Context()), http.StatusServiceUnavailable)
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	s.writeProbeResponse(w, s.probeManager.CheckStartup(r.Context()), http.StatusServiceUnavailable)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("failed to write response")
	}
}

// statusRecorder captures the response status for metrics. It forwards
// Hijack so websocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
