// Package types holds the JSON documents exchanged with the blueprint HTTP
// service.
package types

import (
	"encoding/json"
	"time"
)

// Routes served by the HTTP service.
const (
	PathValidate     = "/v1/diagram/validate"
	PathAutoEdges    = "/v1/edges/auto"
	PathExport       = "/v1/export"
	PathExportStream = "/v1/export/ws"
	PathHealth       = "/healthz"
)

// HeaderMode names the response header that reports how the documents in
// an exported archive were produced ("template" or "ai").
const HeaderMode = "X-Blueprint-Mode"

// Issue is one problem found in a diagram.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidateResponse reports whether a diagram imports cleanly and whether it
// can be exported as is.
type ValidateResponse struct {
	Valid      bool    `json:"valid"`
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	Exportable bool    `json:"exportable"`
	Blocker    string  `json:"blocker,omitempty"`
	Issues     []Issue `json:"issues,omitempty"`
}

// AutoEdgesResponse carries the diagram with generated edges appended.
type AutoEdgesResponse struct {
	Added   int             `json:"added"`
	Diagram json.RawMessage `json:"diagram"`
}

// AIOptions select AI generation for an export. When APIKey is empty the
// server falls back to its own configured key, unless BaseURL is set.
type AIOptions struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// ExportRequest is the body of an export, and the first websocket message of
// a streaming export. Diagram is a diagram.json document.
type ExportRequest struct {
	Diagram     json.RawMessage `json:"diagram"`
	ProjectName string          `json:"project_name"`
	OutOfScope  []string        `json:"out_of_scope,omitempty"`
	AI          *AIOptions      `json:"ai,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Code        string   `json:"code,omitempty"`
	Cancelled   bool     `json:"cancelled,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Issues      []Issue  `json:"issues,omitempty"`
}

// Progress mirrors the streaming progress snapshot.
type Progress struct {
	Phase          string  `json:"phase"`
	CurrentFile    *string `json:"currentFile,omitempty"`
	FilesCompleted int     `json:"filesCompleted"`
	TotalFiles     int     `json:"totalFiles"`
	Error          string  `json:"error,omitempty"`
}

// Stream event types.
const (
	EventFileStart    = "file-start"
	EventTokens       = "tokens"
	EventFileComplete = "file-complete"
	EventProgress     = "progress"
	EventFinished     = "finished"
)

// StreamEvent is one text message of a streaming export. After a successful
// finished event the server sends the archive as a single binary message.
type StreamEvent struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind,omitempty"`
	Path      string    `json:"path,omitempty"`
	Tokens    string    `json:"tokens,omitempty"`
	Content   string    `json:"content,omitempty"`
	Progress  *Progress `json:"progress,omitempty"`
	OK        bool      `json:"ok,omitempty"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
	Cancelled bool      `json:"cancelled,omitempty"`
	Mode      string    `json:"mode,omitempty"`
}

// CancelMessage stops a running streaming export when sent by the client.
type CancelMessage struct {
	Type string `json:"type"`
}

// CancelType is the Type of a CancelMessage.
const CancelType = "cancel"

// HealthCheck is one dependency check in a HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of the probe endpoints.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Uptime  string                 `json:"uptime,omitempty"`
	Checks  map[string]HealthCheck `json:"checks,omitempty"`
}
