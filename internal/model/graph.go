package model

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"slices"
)

// Graph is a snapshot of the channel graph: every known node and every
// channel between them, in the order the source document listed them.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a participant in the network.
type Node struct {
	LastUpdate uint32    `json:"last_update"`
	PubKey     string    `json:"pub_key"`
	Alias      string    `json:"alias"`
	Addresses  []Address `json:"addresses"`
	Color      string    `json:"color"`
}

// Address is a network endpoint a node advertises.
type Address struct {
	Network string         `json:"network"`
	Addr    netip.AddrPort `json:"addr"`
}

// Edge is a payment channel between two nodes. Node1Pub and Node2Pub are
// not checked against the graph's node list.
type Edge struct {
	ChannelID   string      `json:"channel_id"`
	ChanPoint   string      `json:"chan_point"`
	LastUpdate  uint32      `json:"last_update"`
	Node1Pub    string      `json:"node1_pub"`
	Node2Pub    string      `json:"node2_pub"`
	Capacity    uint32      `json:"capacity,string"`
	Node1Policy *NodePolicy `json:"node1_policy"`
	Node2Policy *NodePolicy `json:"node2_policy"`
}

// NodePolicy is one endpoint's forwarding terms for a channel.
type NodePolicy struct {
	TimeLockDelta    uint16 `json:"time_lock_delta"`
	MinHTLC          uint64 `json:"min_htlc,string"`
	FeeBaseMsat      uint64 `json:"fee_base_msat,string"`
	FeeRateMilliMsat uint64 `json:"fee_rate_milli_msat,string"`
	Disabled         bool   `json:"disabled"`
	MaxHTLCMsat      uint64 `json:"max_htlc_msat,string"`
	LastUpdate       uint32 `json:"last_update"`
}

// Equal reports whether g and o hold the same nodes and edges in the same order.
func (g *Graph) Equal(o *Graph) bool {
	if g == nil || o == nil {
		return g == o
	}
	return slices.EqualFunc(g.Nodes, o.Nodes, Node.Equal) &&
		slices.EqualFunc(g.Edges, o.Edges, Edge.Equal)
}

// Equal reports whether n and o are field-for-field identical.
func (n Node) Equal(o Node) bool {
	return n.LastUpdate == o.LastUpdate &&
		n.PubKey == o.PubKey &&
		n.Alias == o.Alias &&
		n.Color == o.Color &&
		slices.Equal(n.Addresses, o.Addresses)
}

// Equal reports whether e and o are field-for-field identical, comparing
// policies by value.
func (e Edge) Equal(o Edge) bool {
	return e.ChannelID == o.ChannelID &&
		e.ChanPoint == o.ChanPoint &&
		e.LastUpdate == o.LastUpdate &&
		e.Node1Pub == o.Node1Pub &&
		e.Node2Pub == o.Node2Pub &&
		e.Capacity == o.Capacity &&
		policyEqual(e.Node1Policy, o.Node1Policy) &&
		policyEqual(e.Node2Policy, o.Node2Policy)
}

func policyEqual(a, b *NodePolicy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	c := &Graph{Nodes: slices.Clone(g.Nodes), Edges: slices.Clone(g.Edges)}
	for i := range c.Nodes {
		c.Nodes[i].Addresses = slices.Clone(c.Nodes[i].Addresses)
	}
	for i := range c.Edges {
		e := &c.Edges[i]
		if e.Node1Policy != nil {
			p := *e.Node1Policy
			e.Node1Policy = &p
		}
		if e.Node2Policy != nil {
			p := *e.Node2Policy
			e.Node2Policy = &p
		}
	}
	return c
}

// MarshalJSON encodes the graph in its wire format. Nil slices are written
// as empty arrays so the output always decodes again.
func (g Graph) MarshalJSON() ([]byte, error) {
	type plain Graph
	p := plain(g)
	if p.Nodes == nil {
		p.Nodes = []Node{}
	}
	if p.Edges == nil {
		p.Edges = []Edge{}
	}
	return json.Marshal(p)
}

// MarshalJSON encodes the node, writing a nil address list as [].
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	p := plain(n)
	if p.Addresses == nil {
		p.Addresses = []Address{}
	}
	return json.Marshal(p)
}

// UnmarshalJSON decodes data with the same rules as Decode. A JSON null
// leaves g unchanged, as encoding/json does for other types.
func (g *Graph) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == jsonNull {
		return nil
	}
	return decodeGraph(data, g)
}

// Encode serializes g into the wire format accepted by Decode.
func Encode(g *Graph) ([]byte, error) {
	return json.Marshal(g)
}
