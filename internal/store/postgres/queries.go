package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/store"
)

// snapshotColumns is the column list used for SELECT statements on the snapshots table.
const snapshotColumns = `id, source, created_at, stats`

// defaultListLimit caps ListSnapshots when the caller passes no limit.
const defaultListLimit = 50

var (
	nodeColumns    = []string{"snapshot_id", "position", "pub_key", "alias", "color", "last_update"}
	addressColumns = []string{"snapshot_id", "node_position", "position", "network", "addr"}
	edgeColumns    = []string{"snapshot_id", "position", "channel_id", "chan_point", "last_update", "node1_pub", "node2_pub", "capacity"}
	policyColumns  = []string{"snapshot_id", "edge_position", "side", "time_lock_delta", "min_htlc", "fee_base_msat",
		"fee_rate_milli_msat", "disabled", "max_htlc_msat", "last_update"}
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querySaveSnapshot(ctx context.Context, db executor, snap *model.Snapshot, g *model.Graph) error {
	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO snapshots (id, source, created_at, stats)
		VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.Source, snap.CreatedAt, stats,
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if g == nil {
		return nil
	}

	var addrRows, policyRows [][]any
	nodeRows := make([][]any, len(g.Nodes))
	for i, n := range g.Nodes {
		nodeRows[i] = []any{snap.ID, i, n.PubKey, n.Alias, n.Color, int64(n.LastUpdate)}
		for j, a := range n.Addresses {
			addrRows = append(addrRows, []any{snap.ID, i, j, a.Network, a.Addr.String()})
		}
	}
	edgeRows := make([][]any, len(g.Edges))
	for i, e := range g.Edges {
		edgeRows[i] = []any{snap.ID, i, e.ChannelID, e.ChanPoint, int64(e.LastUpdate), e.Node1Pub, e.Node2Pub, int64(e.Capacity)}
		for side, p := range []*model.NodePolicy{e.Node1Policy, e.Node2Policy} {
			if p != nil {
				policyRows = append(policyRows, policyRow(snap.ID, i, side+1, p))
			}
		}
	}

	for _, t := range []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"nodes", nodeColumns, nodeRows},
		{"node_addresses", addressColumns, addrRows},
		{"edges", edgeColumns, edgeRows},
		{"edge_policies", policyColumns, policyRows},
	} {
		if err := copyRows(ctx, db, t.table, t.columns, t.rows); err != nil {
			return err
		}
	}
	return nil
}

// policyRow flattens p. The uint64 msat amounts travel as decimal text so
// values above math.MaxInt64 reach the NUMERIC columns intact.
func policyRow(id string, edge, side int, p *model.NodePolicy) []any {
	return []any{
		id, edge, side,
		int64(p.TimeLockDelta),
		strconv.FormatUint(p.MinHTLC, 10),
		strconv.FormatUint(p.FeeBaseMsat, 10),
		strconv.FormatUint(p.FeeRateMilliMsat, 10),
		p.Disabled,
		strconv.FormatUint(p.MaxHTLCMsat, 10),
		int64(p.LastUpdate),
	}
}

// copyRows bulk-loads rows into table with COPY FROM STDIN. It must run
// inside a transaction.
func copyRows(ctx context.Context, db executor, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := db.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("prepare copy %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("copy %s: %w", table, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy %s: %w", table, err)
	}
	return nil
}

func queryGetSnapshot(ctx context.Context, db executor, id string) (*model.Snapshot, error) {
	row := db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = $1`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return snap, nil
}

func queryListSnapshots(ctx context.Context, db executor, limit int) ([]*model.Snapshot, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []*model.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func queryGetGraph(ctx context.Context, db executor, id string) (*model.Graph, error) {
	if _, err := queryGetSnapshot(ctx, db, id); err != nil {
		return nil, err
	}

	g := &model.Graph{Nodes: []model.Node{}, Edges: []model.Edge{}}
	if err := queryNodes(ctx, db, id, g); err != nil {
		return nil, err
	}
	if err := queryAddresses(ctx, db, id, g); err != nil {
		return nil, err
	}
	if err := queryEdges(ctx, db, id, g); err != nil {
		return nil, err
	}
	if err := queryPolicies(ctx, db, id, g); err != nil {
		return nil, err
	}
	return g, nil
}

func queryNodes(ctx context.Context, db executor, id string, g *model.Graph) error {
	rows, err := db.QueryContext(ctx, `
		SELECT pub_key, alias, color, last_update
		FROM nodes WHERE snapshot_id = $1 ORDER BY position`, id)
	if err != nil {
		return fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return fmt.Errorf("scan node: %w", err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	return rows.Err()
}

func queryAddresses(ctx context.Context, db executor, id string, g *model.Graph) error {
	rows, err := db.QueryContext(ctx, `
		SELECT node_position, network, addr
		FROM node_addresses WHERE snapshot_id = $1 ORDER BY node_position, position`, id)
	if err != nil {
		return fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pos     int
			network string
			addr    string
		)
		if err := rows.Scan(&pos, &network, &addr); err != nil {
			return fmt.Errorf("scan address: %w", err)
		}
		if pos < 0 || pos >= len(g.Nodes) {
			return fmt.Errorf("address for unknown node position %d", pos)
		}
		ap, err := netip.ParseAddrPort(addr)
		if err != nil {
			return fmt.Errorf("stored address %q: %w", addr, err)
		}
		n := &g.Nodes[pos]
		n.Addresses = append(n.Addresses, model.Address{Network: network, Addr: ap})
	}
	return rows.Err()
}

func queryEdges(ctx context.Context, db executor, id string, g *model.Graph) error {
	rows, err := db.QueryContext(ctx, `
		SELECT channel_id, chan_point, last_update, node1_pub, node2_pub, capacity
		FROM edges WHERE snapshot_id = $1 ORDER BY position`, id)
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	return rows.Err()
}

func queryPolicies(ctx context.Context, db executor, id string, g *model.Graph) error {
	rows, err := db.QueryContext(ctx, `
		SELECT edge_position, side, time_lock_delta, min_htlc::text, fee_base_msat::text,
			fee_rate_milli_msat::text, disabled, max_htlc_msat::text, last_update
		FROM edge_policies WHERE snapshot_id = $1 ORDER BY edge_position, side`, id)
	if err != nil {
		return fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pos, side, p, err := scanPolicy(rows)
		if err != nil {
			return fmt.Errorf("scan policy: %w", err)
		}
		if pos < 0 || pos >= len(g.Edges) {
			return fmt.Errorf("policy for unknown edge position %d", pos)
		}
		switch side {
		case 1:
			g.Edges[pos].Node1Policy = p
		case 2:
			g.Edges[pos].Node2Policy = p
		default:
			return fmt.Errorf("policy side %d out of range", side)
		}
	}
	return rows.Err()
}

func queryDeleteSnapshot(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return nil
}
