package server

import (
	"net/http"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// handleDecode handles POST /v1/decode. The response is the decoded graph
// in canonical form.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	g, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleStats handles POST /v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	g, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, model.ComputeStats(g))
}
