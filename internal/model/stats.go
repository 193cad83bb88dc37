package model

import "slices"

// Stats holds aggregate figures for a decoded graph. Capacities are in
// satoshis as carried by Edge.Capacity.
type Stats struct {
	NumNodes        int    `json:"num_nodes"`
	NumChannels     int    `json:"num_channels"`
	NumAddresses    int    `json:"num_addresses"`
	NumPolicies     int    `json:"num_policies"`
	NumDisabled     int    `json:"num_disabled"`
	TotalCapacity   uint64 `json:"total_capacity"`
	MinChanSize     uint32 `json:"min_chan_size"`
	MaxChanSize     uint32 `json:"max_chan_size"`
	MedianChanSize  uint32 `json:"median_chan_size"`
	NumUnknownPeers int    `json:"num_unknown_peers"`
}

// ComputeStats summarizes g. The median of an even-sized capacity set is
// the lower of the two middle values. Edges whose endpoints are missing
// from the node list are counted per endpoint in NumUnknownPeers, not rejected.
func ComputeStats(g *Graph) Stats {
	var s Stats
	if g == nil {
		return s
	}
	s.NumNodes = len(g.Nodes)
	s.NumChannels = len(g.Edges)

	known := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		s.NumAddresses += len(n.Addresses)
		known[n.PubKey] = struct{}{}
	}

	caps := make([]uint32, 0, len(g.Edges))
	for _, e := range g.Edges {
		caps = append(caps, e.Capacity)
		s.TotalCapacity += uint64(e.Capacity)
		for _, p := range []*NodePolicy{e.Node1Policy, e.Node2Policy} {
			if p == nil {
				continue
			}
			s.NumPolicies++
			if p.Disabled {
				s.NumDisabled++
			}
		}
		for _, pub := range []string{e.Node1Pub, e.Node2Pub} {
			if _, ok := known[pub]; !ok {
				s.NumUnknownPeers++
			}
		}
	}

	if len(caps) > 0 {
		slices.Sort(caps)
		s.MinChanSize = caps[0]
		s.MaxChanSize = caps[len(caps)-1]
		s.MedianChanSize = caps[(len(caps)-1)/2]
	}
	return s
}
