// Package ingest turns fetched graph documents into stored snapshots.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/idgen"
	"github.com/alfredjeanlab/lngraph/internal/metrics"
	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/source"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

// Record saves g as a new snapshot attributed to sourceName and publishes
// a snapshot.imported event. A publish failure is logged, not returned.
func Record(ctx context.Context, st store.Store, pub events.Publisher, logger *slog.Logger, sourceName string, g *model.Graph, now time.Time) (*model.Snapshot, error) {
	id, err := idgen.NewSnapshotID()
	if err != nil {
		return nil, fmt.Errorf("generate snapshot id: %w", err)
	}
	snap := model.NewSnapshot(id, sourceName, g, now)
	if err := st.SaveSnapshot(ctx, snap, g); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if err := pub.Publish(ctx, events.TopicSnapshotImported, events.SnapshotImported{Snapshot: snap}); err != nil {
		logger.Warn("publish snapshot.imported failed", "snapshot_id", snap.ID, "err", err)
	}
	return snap, nil
}

// Importer fetches a graph document from one source and records it.
type Importer struct {
	source    source.Source
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewImporter(src source.Source, st store.Store, pub events.Publisher, logger *slog.Logger) *Importer {
	return &Importer{
		source:    src,
		store:     st,
		publisher: pub,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics records import outcomes on m. A nil m disables recording.
func (im *Importer) SetMetrics(m *metrics.Metrics) { im.metrics = m }

// ImportOnce fetches, decodes and stores one snapshot. When the document
// does not decode, a decode.failed event is published and the decode error
// is returned.
func (im *Importer) ImportOnce(ctx context.Context) (*model.Snapshot, error) {
	snap, err := im.importOnce(ctx)
	im.metrics.ObserveImport(err)
	return snap, err
}

func (im *Importer) importOnce(ctx context.Context) (*model.Snapshot, error) {
	name := im.source.String()
	data, err := im.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	g, err := model.Decode(data)
	if err != nil {
		if perr := im.publisher.Publish(ctx, events.TopicDecodeFailed, events.NewDecodeFailed(name, err)); perr != nil {
			im.logger.Warn("publish decode.failed failed", "source", name, "err", perr)
		}
		return nil, err
	}

	snap, err := Record(ctx, im.store, im.publisher, im.logger, name, g, im.now())
	if err != nil {
		return nil, err
	}
	im.logger.Info("snapshot imported", "snapshot_id", snap.ID, "source", name,
		"nodes", snap.Stats.NumNodes, "channels", snap.Stats.NumChannels)
	return snap, nil
}
