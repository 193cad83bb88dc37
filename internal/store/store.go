package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// ErrNotFound is returned when no snapshot has the requested ID.
var ErrNotFound = errors.New("snapshot not found")

// Store defines the persistence interface for graph snapshots.
type Store interface {
	// SaveSnapshot stores snap together with the graph it summarizes.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot, g *model.Graph) error
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	// ListSnapshots returns the newest snapshots first, at most limit of them.
	ListSnapshots(ctx context.Context, limit int) ([]*model.Snapshot, error)
	// GetGraph reassembles the stored graph with node and edge order intact.
	GetGraph(ctx context.Context, id string) (*model.Graph, error)
	DeleteSnapshot(ctx context.Context, id string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
