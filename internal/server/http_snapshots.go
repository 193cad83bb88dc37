package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/ingest"
	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/source"
)

// uploadSource names snapshots created from a request body.
const uploadSource = "upload"

// maxListLimit caps GET /v1/snapshots?limit=.
const maxListLimit = 1000

// requireStore writes 503 and returns false when no store is configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return false
	}
	return true
}

// handleCreateSnapshot handles POST /v1/snapshots. The graph comes from the
// request body, or from the source named by the ?source= parameter.
func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	name := uploadSource
	var (
		data []byte
		err  error
	)
	if uri := r.URL.Query().Get("source"); uri != "" {
		var src source.Source
		src, err = s.openSource(r.Context(), uri)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errSourceForbidden) {
				status = http.StatusForbidden
			}
			writeError(w, status, err.Error())
			return
		}
		name = src.String()
		data, err = src.Fetch(r.Context())
		if err != nil {
			s.writeFetchError(w, name, err)
			return
		}
	} else {
		data, err = s.readBody(w, r)
		if err != nil {
			writeBodyError(w, err)
			return
		}
	}

	g, err := model.Decode(data)
	s.metrics.ObserveDecode(len(data), err)
	if err != nil {
		if perr := s.publisher.Publish(r.Context(), events.TopicDecodeFailed, events.NewDecodeFailed(name, err)); perr != nil {
			s.logger.Warn("publish decode.failed failed", "source", name, "err", perr)
		}
		writeDecodeError(w, err)
		return
	}

	snap, err := ingest.Record(r.Context(), s.store, s.publisher, s.logger, name, g, s.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// openSource opens uri for a ?source= request. Fetches are bounded by
// MaxBodyBytes unless Options.Sources sets its own limit.
func (s *Server) openSource(ctx context.Context, uri string) (source.Source, error) {
	opts := s.opts.Sources
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = s.opts.MaxBodyBytes
	}
	src, err := source.Open(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	if _, isFile := src.(*source.FileSource); isFile {
		if !s.opts.AllowFileSources {
			return nil, fmt.Errorf("%w: file sources are disabled", errSourceForbidden)
		}
	} else if !s.opts.AllowRemoteSources {
		return nil, fmt.Errorf("%w: remote sources are disabled", errSourceForbidden)
	}
	return src, nil
}

// writeFetchError answers a failed ?source= fetch. An upstream response
// body is logged, never returned to the caller.
func (s *Server) writeFetchError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, source.ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "source document too large")
		return
	}
	var se *source.StatusError
	if errors.As(err, &se) {
		s.logger.Warn("source fetch failed", "source", name, "status", se.StatusCode, "body", se.Body)
	} else {
		s.logger.Warn("source fetch failed", "source", name, "err", err)
	}
	writeError(w, http.StatusBadGateway, "fetch "+name+": "+err.Error())
}

// handleListSnapshots handles GET /v1/snapshots.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	snaps, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// handleGetSnapshot handles GET /v1/snapshots/{id}.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	snap, err := s.store.GetSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetSnapshotGraph handles GET /v1/snapshots/{id}/graph.
func (s *Server) handleGetSnapshotGraph(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	g, err := s.store.GetGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleDeleteSnapshot handles DELETE /v1/snapshots/{id}.
func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	if err := s.store.DeleteSnapshot(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.publisher.Publish(r.Context(), events.TopicSnapshotDeleted, events.SnapshotDeleted{SnapshotID: id}); err != nil {
		s.logger.Warn("publish snapshot.deleted failed", "snapshot_id", id, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
