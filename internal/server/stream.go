package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/blueprint/internal/events"
	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

const (
	streamWriteWait   = 10 * time.Second
	streamPongWait    = 60 * time.Second
	streamPingEvery   = (streamPongWait * 9) / 10
	streamRequestWait = 30 * time.Second
)

// wsSink writes events as JSON text messages. gorilla connections allow one
// concurrent writer, so every data write holds mu.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Publish(_ context.Context, e events.Event) error {
	return s.write(func() error { return s.conn.WriteJSON(e) })
}

func (s *wsSink) Close() error { return nil }

func (s *wsSink) writeArchive(archive []byte) error {
	return s.write(func() error { return s.conn.WriteMessage(websocket.BinaryMessage, archive) })
}

func (s *wsSink) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return fn()
}

// handleExportStream runs a streaming export over a websocket.
//
// The client sends one ExportRequest as a text message. The server answers
// with StreamEvent text messages, ending with a finished event and, on
// success, one binary message holding the archive. A {"type":"cancel"}
// message or closing the socket cancels the run.
func (s *Server) handleExportStream(w http.ResponseWriter, r *http.Request) {
	s.streams.Add(1)
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer s.metrics.StreamOpened()()

	conn.SetReadLimit(s.maxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)

	ws := &wsSink{conn: conn}
	var sink events.Sink = ws
	if s.nc != nil {
		sink = events.Tee(ws, events.NewNATSSinkConn(s.nc, s.eventsPrefix))
	}
	defer sink.Close()
	fw := events.NewForwarder(ctx, sink, runID, logger)

	var req types.ExportRequest
	if err := conn.SetReadDeadline(time.Now().Add(streamRequestWait)); err != nil {
		return
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.WithError(err).Debug("no export request received")
		return
	}
	if err := decodeStrict(data, &req); err != nil {
		s.finishWithError(fw, err)
		s.closeStream(conn, websocket.CloseUnsupportedData)
		return
	}
	nodes, edges, opts, err := s.exportInput(req)
	if err != nil {
		s.finishWithError(fw, err)
		s.closeStream(conn, websocket.ClosePolicyViolation)
		return
	}

	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go s.readControl(conn, cancel)
	go s.keepAlive(ctx, conn)

	res := s.exporter.ExportStreaming(ctx, nodes, edges, opts, fw.Callbacks(generate.Callbacks{}))
	fw.Finish(events.Outcome{
		OK:        res.OK,
		Filename:  res.Filename,
		Error:     res.Error,
		Code:      string(res.Code),
		Cancelled: res.Cancelled,
		Mode:      string(res.Mode),
	})
	if res.OK {
		if err := ws.writeArchive(res.Archive); err != nil {
			logger.WithError(err).Warn("failed to send archive")
			return
		}
	}
	s.closeStream(conn, websocket.CloseNormalClosure)
}

// readControl cancels the run on a cancel message or when the peer goes away.
func (s *Server) readControl(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg types.CancelMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == types.CancelType {
			return
		}
	}
}

func (s *Server) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// finishWithError ends a run that was rejected before the export started.
func (s *Server) finishWithError(fw *events.Forwarder, err error) {
	resp := errorResponse(err)
	s.metrics.RecordError(resp.Code)
	fw.Finish(events.Outcome{Error: resp.Error, Code: resp.Code})
}

func (s *Server) closeStream(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
