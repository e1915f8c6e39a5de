package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/blueprint/internal/version"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

// ExportStream runs a streaming export over a websocket. onEvent, if set,
// sees every event in order, including the final one. Cancelling ctx asks
// the service to stop; the returned APIError then has Cancelled set.
func (c *Client) ExportStream(ctx context.Context, req *types.ExportRequest, onEvent func(types.StreamEvent)) (*Archive, error) {
	url := c.baseURL + types.PathExportStream
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	header := http.Header{"User-Agent": []string{version.GetInfo().UserAgent()}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send export request: %w", err)
	}

	// Only this goroutine writes after the request has been sent.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteJSON(types.CancelMessage{Type: types.CancelType})
		case <-done:
		}
	}()

	var (
		finished *types.StreamEvent
		archive  []byte
	)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || finished != nil {
				break
			}
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
		if kind == websocket.BinaryMessage {
			archive = data
			continue
		}
		var e types.StreamEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("malformed stream event: %w", err)
		}
		if onEvent != nil {
			onEvent(e)
		}
		if e.Type == types.EventFinished {
			finished = &e
		}
	}

	switch {
	case finished == nil:
		return nil, ErrStreamClosed
	case !finished.OK:
		return nil, &APIError{
			Code:      finished.Code,
			Message:   finished.Error,
			Cancelled: finished.Cancelled,
		}
	case archive == nil:
		return nil, ErrStreamClosed
	}
	return &Archive{Filename: finished.Path, Mode: finished.Mode, Data: archive}, nil
}
