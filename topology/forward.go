package topology

import (
	"fmt"
	"net/netip"

	"github.com/gaissmai/bart"
)

// ForwardEntry is one longest-prefix-match table value. Local entries carry
// the node's own interface address and metric zero.
type ForwardEntry struct {
	Network netip.Prefix
	Gateway netip.Addr
	Metric  int
	Local   bool
}

// ForwardingTable builds a longest-prefix-match view of name's route table:
// its aggregated remote routes plus its directly attached networks.
func (t *Topology) ForwardingTable(name string) (*bart.Table[ForwardEntry], error) {
	if !t.distributed {
		return nil, ErrDistributionNotRun
	}
	n := t.Node(name)
	if n == nil {
		return nil, fmt.Errorf("unknown node %q", name)
	}

	tbl := &bart.Table[ForwardEntry]{}
	for _, itf := range n.interfaces {
		tbl.Insert(itf.channel.network, ForwardEntry{
			Network: itf.channel.network,
			Gateway: itf.Addr(),
			Metric:  0,
			Local:   true,
		})
	}
	for _, r := range n.aggregatedRoutes() {
		if r.Local() {
			continue
		}
		tbl.Insert(r.Network, ForwardEntry{
			Network: r.Network,
			Gateway: r.Gateway.Addr(),
			Metric:  r.Metric,
		})
	}
	return tbl, nil
}
