package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// errInvalidUTF8 is the cause of a syntax error for input that is not UTF-8.
var errInvalidUTF8 = errors.New("invalid UTF-8")

// Field tables for each entity. Keys are matched exactly; keys not listed
// here are ignored.
var (
	addressSchema = schema[Address]{
		{name: "network", decode: func(a *Address, f field) error { return str(f, &a.Network) }},
		{name: "addr", decode: func(a *Address, f field) error { return addrPort(f, &a.Addr) }},
	}

	nodeSchema = schema[Node]{
		{name: "last_update", decode: func(n *Node, f field) error { return native(f, &n.LastUpdate) }},
		{name: "pub_key", decode: func(n *Node, f field) error { return str(f, &n.PubKey) }},
		{name: "alias", decode: func(n *Node, f field) error { return str(f, &n.Alias) }},
		{name: "addresses", decode: func(n *Node, f field) error { return array(addressSchema)(f, &n.Addresses) }},
		{name: "color", decode: func(n *Node, f field) error { return str(f, &n.Color) }},
	}

	policySchema = schema[NodePolicy]{
		{name: "time_lock_delta", decode: func(p *NodePolicy, f field) error { return native(f, &p.TimeLockDelta) }},
		{name: "min_htlc", decode: func(p *NodePolicy, f field) error { return coerced(f, &p.MinHTLC) }},
		{name: "fee_base_msat", decode: func(p *NodePolicy, f field) error { return coerced(f, &p.FeeBaseMsat) }},
		{name: "fee_rate_milli_msat", decode: func(p *NodePolicy, f field) error { return coerced(f, &p.FeeRateMilliMsat) }},
		{name: "disabled", decode: func(p *NodePolicy, f field) error { return boolean(f, &p.Disabled) }},
		{name: "max_htlc_msat", decode: func(p *NodePolicy, f field) error { return coerced(f, &p.MaxHTLCMsat) }},
		{name: "last_update", decode: func(p *NodePolicy, f field) error { return native(f, &p.LastUpdate) }},
	}

	edgeSchema = schema[Edge]{
		{name: "channel_id", decode: func(e *Edge, f field) error { return str(f, &e.ChannelID) }},
		{name: "chan_point", decode: func(e *Edge, f field) error { return str(f, &e.ChanPoint) }},
		{name: "last_update", decode: func(e *Edge, f field) error { return native(f, &e.LastUpdate) }},
		{name: "node1_pub", decode: func(e *Edge, f field) error { return str(f, &e.Node1Pub) }},
		{name: "node2_pub", decode: func(e *Edge, f field) error { return str(f, &e.Node2Pub) }},
		{name: "capacity", decode: func(e *Edge, f field) error { return coerced(f, &e.Capacity) }},
		{name: "node1_policy", optional: true, decode: func(e *Edge, f field) error { return optional(policySchema)(f, &e.Node1Policy) }},
		{name: "node2_policy", optional: true, decode: func(e *Edge, f field) error { return optional(policySchema)(f, &e.Node2Policy) }},
	}

	graphSchema = schema[Graph]{
		{name: "nodes", decode: func(g *Graph, f field) error { return array(nodeSchema)(f, &g.Nodes) }},
		{name: "edges", decode: func(g *Graph, f field) error { return array(edgeSchema)(f, &g.Edges) }},
	}
)

// Decode parses a JSON graph document. On any error the returned graph is
// nil and err is a *DecodeError describing the first problem found; there
// is no partial result.
func Decode(data []byte) (*Graph, error) {
	var g Graph
	if err := decodeGraph(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DecodeString is Decode for text already held as a string.
func DecodeString(text string) (*Graph, error) {
	return Decode([]byte(text))
}

// Read consumes r to EOF and decodes the result. Read errors are returned
// wrapped, not as a *DecodeError.
func Read(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Decode(data)
}

func decodeGraph(data []byte, dst *Graph) error {
	if !utf8.Valid(data) {
		return utf8Error(data)
	}
	var root json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return syntaxError(data, err)
	}
	// A non-object root has neither top-level key.
	if kindOf(root) != jsonObject {
		return missingField(graphSchema[0].name)
	}
	var g Graph
	if err := graphSchema.decode(field{raw: root}, &g); err != nil {
		return err
	}
	*dst = g
	return nil
}

// utf8Error reports the first byte of data that does not start a valid
// UTF-8 sequence. encoding/json would otherwise replace it with U+FFFD.
func utf8Error(data []byte) error {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			de := &DecodeError{Kind: KindSyntax, Offset: int64(i + 1), Err: errInvalidUTF8}
			de.Line, de.Column = position(data, de.Offset)
			return de
		}
		i += size
	}
	return nil
}
