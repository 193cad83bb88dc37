package model

import "time"

// Snapshot is the record of one decoded graph kept by the store.
type Snapshot struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Stats     Stats     `json:"stats"`
}

// NewSnapshot builds a snapshot record for g.
func NewSnapshot(id, source string, g *Graph, now time.Time) *Snapshot {
	return &Snapshot{
		ID:        id,
		Source:    source,
		CreatedAt: now.UTC(),
		Stats:     ComputeStats(g),
	}
}
