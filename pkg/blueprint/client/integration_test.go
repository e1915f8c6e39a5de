package client_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/internal/health"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/server"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/client"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

func startService(t *testing.T) *client.Client {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}

	pm := health.NewProbeManager("test")
	pm.MarkInitialized()
	s := server.NewServer(pm, server.Config{},
		server.WithLogger(log.Nop()),
		server.WithExporter(export.New(export.WithLogger(log.Nop()))),
	)
	srv := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: s.Handler()},
	}
	srv.Start()
	t.Cleanup(srv.Close)

	return client.NewWithConfig(srv.URL, &client.Config{
		MaxRetries: 0,
		RetryDelay: 10 * time.Millisecond,
		Timeout:    10 * time.Second,
	})
}

func shopDiagram(t *testing.T) []byte {
	t.Helper()
	data, err := diagram.Marshal([]diagram.Node{
		{ID: "ui", Type: diagram.Frontend, Label: "Web"},
		{ID: "api", Type: diagram.Backend, Label: "API"},
		{ID: "db", Type: diagram.Storage, Label: "DB"},
	}, []diagram.Edge{{ID: "e1", Source: "ui", Target: "api"}}, time.Now())
	require.NoError(t, err)
	return data
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestServiceRoundTrip(t *testing.T) {
	c := startService(t)
	ctx := context.Background()

	hr, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", hr.Status)
	assert.Equal(t, "test", hr.Version)

	vr, err := c.Validate(ctx, shopDiagram(t))
	require.NoError(t, err)
	assert.True(t, vr.Valid)
	assert.True(t, vr.Exportable)
	assert.Equal(t, 3, vr.Nodes)

	ar, err := c.AutoEdges(ctx, shopDiagram(t))
	require.NoError(t, err)
	assert.Equal(t, 1, ar.Added)
	_, edges, err := diagram.Parse(ar.Diagram)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	archive, err := c.Export(ctx, &types.ExportRequest{Diagram: shopDiagram(t), ProjectName: "Shop"})
	require.NoError(t, err)
	assert.Equal(t, "shop-blueprint.zip", archive.Filename)
	assert.Equal(t, "template", archive.Mode)
	assert.Contains(t, zipNames(t, archive.Data), "specs/api.md")
}

func TestServiceValidateReportsIssues(t *testing.T) {
	c := startService(t)

	data, err := diagram.Marshal(
		[]diagram.Node{{ID: "a", Type: diagram.Backend, Label: "A"}},
		[]diagram.Edge{{ID: "e1", Source: "a", Target: "missing"}},
		time.Now(),
	)
	require.NoError(t, err)

	vr, err := c.Validate(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, vr.Valid)
	require.NotEmpty(t, vr.Issues)
	assert.Equal(t, "DIAGRAM-003", vr.Issues[0].Code)
}

func TestServiceExportStream(t *testing.T) {
	c := startService(t)

	var seen []string
	archive, err := c.ExportStream(context.Background(),
		&types.ExportRequest{Diagram: shopDiagram(t), ProjectName: "Shop"},
		func(e types.StreamEvent) {
			if e.Type == types.EventFileComplete {
				seen = append(seen, e.Path)
			}
		})
	require.NoError(t, err)

	assert.Equal(t, "shop-blueprint.zip", archive.Filename)
	assert.Equal(t, "template", archive.Mode)
	assert.Equal(t, []string{"PROJECT_RULES.md", "AGENT_PROTOCOL.md", "specs/web.md", "specs/api.md", "specs/db.md"}, seen)
	assert.ElementsMatch(t, zipNames(t, archive.Data), append([]string{"README.md", "START.md", "diagram.json"}, seen...))
}

func TestServiceExportStreamRejected(t *testing.T) {
	c := startService(t)

	_, err := c.ExportStream(context.Background(),
		&types.ExportRequest{ProjectName: "Shop"}, nil)
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "DIAGRAM-001", apiErr.Code)
	assert.Equal(t, "diagram is required", apiErr.Message)
}
