package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// Event topic constants
const (
	TopicSnapshotImported = "lngraph.snapshot.imported"
	TopicSnapshotDeleted  = "lngraph.snapshot.deleted"
	TopicDecodeFailed     = "lngraph.decode.failed"

	// TopicAll matches every lngraph topic.
	TopicAll = "lngraph.>"
)

// Event types

type SnapshotImported struct {
	Snapshot *model.Snapshot `json:"snapshot"`
}

type SnapshotDeleted struct {
	SnapshotID string `json:"snapshot_id"`
}

type DecodeFailed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Field  string `json:"field,omitempty"`
}

// NewDecodeFailed builds a DecodeFailed event for err, carrying the
// decode error's kind and field when err is a *model.DecodeError.
func NewDecodeFailed(source string, err error) DecodeFailed {
	ev := DecodeFailed{Source: source, Error: err.Error()}
	var de *model.DecodeError
	if errors.As(err, &de) {
		ev.Kind = string(de.Kind)
		ev.Field = de.Field
	}
	return ev
}

// Describe renders a one-line summary of a raw event payload received on
// topic. Unknown topics and malformed payloads fall back to the raw JSON.
func Describe(topic string, data []byte) string {
	switch topic {
	case TopicSnapshotImported:
		var ev SnapshotImported
		if json.Unmarshal(data, &ev) == nil && ev.Snapshot != nil {
			s := ev.Snapshot
			return fmt.Sprintf("%s imported from %s: %d nodes, %d channels",
				s.ID, s.Source, s.Stats.NumNodes, s.Stats.NumChannels)
		}
	case TopicSnapshotDeleted:
		var ev SnapshotDeleted
		if json.Unmarshal(data, &ev) == nil && ev.SnapshotID != "" {
			return ev.SnapshotID + " deleted"
		}
	case TopicDecodeFailed:
		var ev DecodeFailed
		if json.Unmarshal(data, &ev) == nil && ev.Error != "" {
			return fmt.Sprintf("decode of %s failed: %s", ev.Source, ev.Error)
		}
	}
	return string(data)
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
