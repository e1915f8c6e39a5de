package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/internal/topology"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

// statusClientClosedRequest is reported for exports the caller cancelled.
const statusClientClosedRequest = 499

var errBodyTooLarge = berrors.New(berrors.ErrCodeDiagramInvalid, "request body too large")

// readBody reads at most maxBodyBytes of the request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, berrors.Wrap(berrors.ErrCodeFileReadFailed, "failed to read request body", err)
	}
	return data, nil
}

// handleValidate imports a diagram.json body and reports every issue found.
// An invalid diagram is answered with 422 and the issue list.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	nodes, edges, err := diagram.Parse(data)
	if err != nil {
		var verr *diagram.ValidationError
		if stderrors.As(err, &verr) {
			s.writeJSON(w, http.StatusUnprocessableEntity, types.ValidateResponse{Issues: issues(verr)})
			return
		}
		s.writeError(w, err)
		return
	}

	resp := types.ValidateResponse{
		Valid:      true,
		Nodes:      len(nodes),
		Edges:      len(edges),
		Exportable: true,
	}
	if err := export.CheckPreconditions(nodes); err != nil {
		resp.Exportable = false
		resp.Blocker = errorResponse(err).Error
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAutoEdges appends the edges the default rules would draw and returns
// the updated diagram.json.
func (s *Server) handleAutoEdges(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	nodes, edges, err := diagram.Parse(data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	generated := topology.AutoGenerateEdges(nodes, edges)
	out, err := diagram.Marshal(nodes, topology.Merge(edges, generated), s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.AutoEdgesResponse{Added: len(generated), Diagram: out})
}

// handleExport runs a bulk export and answers with the zip archive.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req types.ExportRequest
	if err := decodeStrict(data, &req); err != nil {
		s.writeError(w, err)
		return
	}
	nodes, edges, opts, err := s.exportInput(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := s.exporter.Export(r.Context(), nodes, edges, opts)
	if !res.OK {
		s.writeJSON(w, exportStatus(res), types.ErrorResponse{
			Error:     res.Error,
			Code:      string(res.Code),
			Cancelled: res.Cancelled,
		})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	h.Set("Content-Length", strconv.Itoa(len(res.Archive)))
	h.Set(types.HeaderMode, string(res.Mode))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		s.logger.WithError(err).Debug("failed to write archive")
	}
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return berrors.Wrap(berrors.ErrCodeDiagramInvalid, "malformed export request: "+err.Error(), err)
	}
	return nil
}

// exportInput parses the embedded diagram and resolves AI options against
// the server defaults. The server's key is never sent to a caller-chosen
// base URL.
func (s *Server) exportInput(req types.ExportRequest) ([]diagram.Node, []diagram.Edge, export.Options, error) {
	if raw := bytes.TrimSpace(req.Diagram); len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil, export.Options{}, berrors.New(berrors.ErrCodeDiagramInvalid, "diagram is required").
			WithSuggestion("Send the diagram.json document in the \"diagram\" field")
	}
	nodes, edges, err := diagram.Parse(req.Diagram)
	if err != nil {
		return nil, nil, export.Options{}, err
	}

	opts := export.Options{
		ProjectName: req.ProjectName,
		OutOfScope:  req.OutOfScope,
		Now:         s.now,
	}
	if req.AI == nil {
		return nodes, edges, opts, nil
	}

	ai := &export.AIOptions{
		UseAI:    true,
		Provider: firstNonEmpty(req.AI.Provider, s.aiDefaults.Name),
		ModelID:  firstNonEmpty(req.AI.Model, s.aiDefaults.Model),
		APIKey:   req.AI.APIKey,
		BaseURL:  req.AI.BaseURL,
	}
	if strings.TrimSpace(ai.APIKey) == "" {
		if strings.TrimSpace(ai.BaseURL) != "" {
			return nil, nil, export.Options{}, berrors.New(berrors.ErrCodeProviderConfig, "a base_url override requires an api_key")
		}
		if strings.EqualFold(ai.Provider, s.aiDefaults.Name) {
			ai.APIKey = s.aiDefaults.APIKey
			ai.BaseURL = s.aiDefaults.BaseURL
		}
	}
	opts.AI = ai
	return nodes, edges, opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func issues(verr *diagram.ValidationError) []types.Issue {
	out := make([]types.Issue, len(verr.Issues))
	for i, issue := range verr.Issues {
		out[i] = types.Issue{Code: string(issue.Code), Message: issue.Message}
	}
	return out
}

// errorResponse renders err for the wire. Coded errors contribute their
// message without the code prefix, plus suggestions.
func errorResponse(err error) types.ErrorResponse {
	resp := types.ErrorResponse{Error: err.Error(), Code: string(berrors.CodeOf(err))}

	var verr *diagram.ValidationError
	var coded *berrors.Error
	switch {
	case stderrors.As(err, &verr):
		resp.Issues = issues(verr)
	case stderrors.As(err, &coded):
		if coded.Message != "" {
			resp.Error = coded.Message
		}
		resp.Suggestions = coded.Suggestions
	}
	return resp
}

// writeError answers with the status implied by err's code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse(err)
	if resp.Code == "" {
		s.logger.WithError(err).Error("request failed")
	}
	status := statusFor(berrors.ErrorCode(resp.Code))
	if stderrors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	s.metrics.RecordError(resp.Code)
	s.writeJSON(w, status, resp)
}

func exportStatus(res export.Result) int {
	if res.Cancelled {
		return statusClientClosedRequest
	}
	return statusFor(res.Code)
}

func statusFor(code berrors.ErrorCode) int {
	switch {
	case code == "":
		return http.StatusInternalServerError
	case code.Category() == "DIAGRAM",
		code == berrors.ErrCodeExportNoComponents,
		code == berrors.ErrCodeExportTooManyNodes:
		return http.StatusUnprocessableEntity
	case code == berrors.ErrCodeProviderNotFound,
		code == berrors.ErrCodeProviderConfig,
		code.Category() == "CONFIG":
		return http.StatusBadRequest
	case code == berrors.ErrCodeExportCancelled, code == berrors.ErrCodeGenCancelled:
		return statusClientClosedRequest
	case code == berrors.ErrCodeExportGeneration,
		code.Category() == "GEN",
		code.Category() == "PROVIDER":
		return http.StatusBadGateway
	case code == berrors.ErrCodeFileReadFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
