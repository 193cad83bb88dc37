package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/decode", s.handleDecode)
	mux.HandleFunc("POST /v1/stats", s.handleStats)
	mux.HandleFunc("POST /v1/snapshots", s.handleCreateSnapshot)
	mux.HandleFunc("GET /v1/snapshots", s.handleListSnapshots)
	mux.HandleFunc("GET /v1/snapshots/{id}", s.handleGetSnapshot)
	mux.HandleFunc("GET /v1/snapshots/{id}/graph", s.handleGetSnapshotGraph)
	mux.HandleFunc("DELETE /v1/snapshots/{id}", s.handleDeleteSnapshot)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return RequestLogger(s.logger, s.metrics.InstrumentHandler(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"snapshots": s.store != nil,
	})
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	return io.ReadAll(r.Body)
}

// decodeBody reads and decodes a graph document from the request body,
// writing the error response itself when that fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (*model.Graph, bool) {
	data, err := s.readBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return nil, false
	}
	g, err := model.Decode(data)
	s.metrics.ObserveDecode(len(data), err)
	if err != nil {
		writeDecodeError(w, err)
		return nil, false
	}
	return g, true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeErrorBody is the 422 response for a document that does not decode.
type decodeErrorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var de *model.DecodeError
	if !errors.As(err, &de) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, decodeErrorBody{
		Error:  de.Error(),
		Kind:   string(de.Kind),
		Field:  de.Field,
		Line:   de.Line,
		Column: de.Column,
	})
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "read body: "+err.Error())
}

// writeStoreError maps store errors to HTTP responses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
