package postgres

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanSnapshot scans a single row into a model.Snapshot.
// The row must contain columns in the order defined by snapshotColumns.
func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var (
		snap  model.Snapshot
		stats []byte
	)
	if err := row.Scan(&snap.ID, &snap.Source, &snap.CreatedAt, &stats); err != nil {
		return nil, err
	}
	snap.CreatedAt = snap.CreatedAt.UTC()
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &snap.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return &snap, nil
}

func scanNode(row scannable) (model.Node, error) {
	var (
		n          model.Node
		lastUpdate int64
	)
	if err := row.Scan(&n.PubKey, &n.Alias, &n.Color, &lastUpdate); err != nil {
		return n, err
	}
	n.LastUpdate = uint32(lastUpdate)
	n.Addresses = []model.Address{}
	return n, nil
}

func scanEdge(row scannable) (model.Edge, error) {
	var (
		e          model.Edge
		lastUpdate int64
		capacity   int64
	)
	if err := row.Scan(&e.ChannelID, &e.ChanPoint, &lastUpdate, &e.Node1Pub, &e.Node2Pub, &capacity); err != nil {
		return e, err
	}
	e.LastUpdate = uint32(lastUpdate)
	e.Capacity = uint32(capacity)
	return e, nil
}

// scanPolicy returns the edge position and side of the policy row along
// with the policy itself.
func scanPolicy(row scannable) (int, int, *model.NodePolicy, error) {
	var (
		pos, side     int
		p             model.NodePolicy
		timeLockDelta int64
		lastUpdate    int64
		minHTLC       string
		feeBase       string
		feeRate       string
		maxHTLC       string
	)
	if err := row.Scan(&pos, &side, &timeLockDelta, &minHTLC, &feeBase, &feeRate, &p.Disabled, &maxHTLC, &lastUpdate); err != nil {
		return 0, 0, nil, err
	}
	p.TimeLockDelta = uint16(timeLockDelta)
	p.LastUpdate = uint32(lastUpdate)
	for _, f := range []struct {
		dst  *uint64
		text string
	}{
		{&p.MinHTLC, minHTLC},
		{&p.FeeBaseMsat, feeBase},
		{&p.FeeRateMilliMsat, feeRate},
		{&p.MaxHTLCMsat, maxHTLC},
	} {
		v, err := strconv.ParseUint(f.text, 10, 64)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("numeric column: %w", err)
		}
		*f.dst = v
	}
	return pos, side, &p, nil
}
