// Package client provides a transport-agnostic interface for the lngraph
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

// Client is the subset of the service both transports provide.
type Client interface {
	Health(ctx context.Context) (string, error)
	Decode(ctx context.Context, data []byte) (*model.Graph, error)
	Stats(ctx context.Context, data []byte) (*model.Stats, error)
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	Close() error
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*GRPCClient)(nil)
)

// APIError is returned when the server responds with an error. Kind, Field,
// Line and Column are set when the server rejected a graph document.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
	Field      string
	Line       int
	Column     int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Is reports whether the server error corresponds to target: a decode
// sentinel such as model.ErrMissingField, or store.ErrNotFound for 404s.
func (e *APIError) Is(target error) bool {
	if target == store.ErrNotFound {
		return e.StatusCode == http.StatusNotFound
	}
	if e.Kind == "" {
		return false
	}
	return errors.Is(&model.DecodeError{Kind: model.ErrorKind(e.Kind)}, target)
}

// ListSnapshotsResponse is the body of GET /v1/snapshots.
type ListSnapshotsResponse struct {
	Snapshots []*model.Snapshot `json:"snapshots"`
}
