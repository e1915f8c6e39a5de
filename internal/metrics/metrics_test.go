package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"CommandExecutions", m.CommandExecutions},
		{"CommandDuration", m.CommandDuration},
		{"CommandErrors", m.CommandErrors},
		{"ProviderCalls", m.ProviderCalls},
		{"ProviderLatency", m.ProviderLatency},
		{"ProviderErrors", m.ProviderErrors},
		{"ProviderTokens", m.ProviderTokens},
		{"ProviderInFlight", m.ProviderInFlight},
		{"ArtifactGenerations", m.ArtifactGenerations},
		{"ArtifactDuration", m.ArtifactDuration},
		{"ArtifactBytes", m.ArtifactBytes},
		{"Exports", m.Exports},
		{"ExportDuration", m.ExportDuration},
		{"ExportNodes", m.ExportNodes},
		{"ArchiveBytes", m.ArchiveBytes},
		{"CacheHits", m.CacheHits},
		{"CacheMisses", m.CacheMisses},
		{"Publishes", m.Publishes},
		{"PublishDuration", m.PublishDuration},
		{"HTTPRequests", m.HTTPRequests},
		{"HTTPRequestDuration", m.HTTPRequestDuration},
		{"StreamSessions", m.StreamSessions},
		{"Errors", m.Errors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestCommandMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CommandExecutions.WithLabelValues("export", "true").Inc()
	m.CommandDuration.WithLabelValues("export").Observe(1.5)
	m.CommandExecutions.WithLabelValues("validate", "false").Inc()
	m.CommandErrors.WithLabelValues("validate", "DIAGRAM-001").Inc()

	if got := testutil.ToFloat64(m.CommandExecutions.WithLabelValues("export", "true")); got != 1 {
		t.Errorf("CommandExecutions export/true = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommandErrors.WithLabelValues("validate", "DIAGRAM-001")); got != 1 {
		t.Errorf("CommandErrors = %v, want 1", got)
	}
}

func TestRecordProviderCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordProviderCall("openai", "gpt-4o-mini", 2*time.Second, nil)
	m.RecordProviderCall("openai", "gpt-4o-mini", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.ProviderCalls.WithLabelValues("openai", "gpt-4o-mini", "true")); got != 1 {
		t.Errorf("ProviderCalls success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProviderCalls.WithLabelValues("openai", "gpt-4o-mini", "false")); got != 1 {
		t.Errorf("ProviderCalls failure = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ProviderLatency); got != 1 {
		t.Errorf("ProviderLatency series = %d, want 1", got)
	}
}

func TestRecordArtifactAndExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordArtifact("component-spec", "ai", time.Second, 2048, nil)
	m.RecordArtifact("project-rules", "ai", time.Second, 0, errors.New("empty"))
	m.RecordExport("template", "ok", 10*time.Millisecond, 3, 4096)
	m.RecordExport("ai", "cancelled", time.Second, 8, 0)

	if got := testutil.ToFloat64(m.ArtifactGenerations.WithLabelValues("component-spec", "ai", "true")); got != 1 {
		t.Errorf("ArtifactGenerations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ArtifactGenerations.WithLabelValues("project-rules", "ai", "false")); got != 1 {
		t.Errorf("ArtifactGenerations failure = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Exports.WithLabelValues("ai", "cancelled")); got != 1 {
		t.Errorf("Exports cancelled = %v, want 1", got)
	}
}

func TestRecordErrorAndNilSafety(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordError("EXPORT-002")
	m.RecordError("EXPORT-002")
	m.RecordError("")

	if got := testutil.ToFloat64(m.Errors.WithLabelValues("EXPORT-002")); got != 2 {
		t.Errorf("Errors = %v, want 2", got)
	}

	var nilMetrics *Metrics
	nilMetrics.RecordError("X")
	nilMetrics.RecordProviderCall("p", "m", time.Second, nil)
	nilMetrics.RecordArtifact("k", "s", time.Second, 1, nil)
	nilMetrics.RecordExport("m", "ok", time.Second, 1, 1)
	nilMetrics.RecordHTTPRequest("GET /healthz", "GET", 200, time.Second)
	nilMetrics.StreamOpened()()
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest("POST /v1/export", "POST", 200, 2*time.Second)
	m.RecordHTTPRequest("POST /v1/export", "POST", 422, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST /v1/export", "POST", "422")); got != 1 {
		t.Errorf("HTTPRequests 422 = %v, want 1", got)
	}

	done := m.StreamOpened()
	if got := testutil.ToFloat64(m.StreamSessions); got != 1 {
		t.Errorf("StreamSessions = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(m.StreamSessions); got != 0 {
		t.Errorf("StreamSessions after close = %v, want 0", got)
	}
}

func TestMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CacheHits.WithLabelValues("ai").Inc()
	m.Publishes.WithLabelValues("oci", "true").Inc()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{"blueprint_cache_hits_total", "blueprint_publishes_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
