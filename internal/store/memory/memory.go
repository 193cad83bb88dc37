// Package memory implements store.Store in process memory. Contents are
// lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

type entry struct {
	snap  model.Snapshot
	graph *model.Graph
}

// Store keeps snapshots in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	// txMu serializes RunInTransaction calls.
	txMu sync.Mutex
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

func (s *Store) SaveSnapshot(_ context.Context, snap *model.Snapshot, g *model.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(snap, g)
}

func (s *Store) saveLocked(snap *model.Snapshot, g *model.Graph) error {
	if _, ok := s.entries[snap.ID]; ok {
		return fmt.Errorf("snapshot %s already exists", snap.ID)
	}
	if g == nil {
		g = &model.Graph{}
	}
	s.entries[snap.ID] = entry{snap: *snap, graph: g.Clone()}
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, id string) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	snap := e.snap
	return &snap, nil
}

// ListSnapshots orders by creation time, newest first, then by ID.
func (s *Store) ListSnapshots(_ context.Context, limit int) ([]*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]*model.Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		snap := e.snap
		snaps = append(snaps, &snap)
	}
	slices.SortFunc(snaps, func(a, b *model.Snapshot) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

func (s *Store) GetGraph(_ context.Context, id string) (*model.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return e.graph.Clone(), nil
}

func (s *Store) DeleteSnapshot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}

// RunInTransaction calls fn with a transaction view of s. If fn returns an
// error, only the snapshots written through that view are restored, so
// writes made to s outside the transaction survive the rollback.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txStore{Store: s, undo: make(map[string]*entry)}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) Close() error { return nil }

// txStore records the prior state of every snapshot it writes.
type txStore struct {
	*Store
	// undo maps an ID to its entry before the first write, nil if absent.
	undo map[string]*entry
}

func (tx *txStore) SaveSnapshot(_ context.Context, snap *model.Snapshot, g *model.Graph) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.rememberLocked(snap.ID)
	return tx.saveLocked(snap, g)
}

func (tx *txStore) DeleteSnapshot(_ context.Context, id string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.rememberLocked(id)
	return tx.deleteLocked(id)
}

// RunInTransaction joins the enclosing transaction.
func (tx *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(tx)
}

func (tx *txStore) rememberLocked(id string) {
	if _, ok := tx.undo[id]; ok {
		return
	}
	if e, ok := tx.entries[id]; ok {
		tx.undo[id] = &e
		return
	}
	tx.undo[id] = nil
}

func (tx *txStore) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for id, e := range tx.undo {
		if e == nil {
			delete(tx.entries, id)
		} else {
			tx.entries[id] = *e
		}
	}
}
