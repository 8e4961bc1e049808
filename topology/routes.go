package topology

import (
	"cmp"
	"net/netip"
	"slices"
)

// routeRecord is one reachability observation accumulated on a channel: the
// origin channel is reachable at dist hops through via, an interface that is
// itself a member of the recording channel.
type routeRecord struct {
	origin *Channel
	via    *Interface
	dist   int
}

// flood runs a breadth-first traversal of the channel-adjacency graph from
// origin. Two channels are adjacent when some node has an interface on each.
// Every channel reached for the first time yields exactly one record, handed
// to sink together with the channel it was observed on; origin itself yields
// none. The queue is an index cursor over the visit slice, so dequeueing is
// O(1).
func flood(origin *Channel, sink func(on *Channel, rec routeRecord)) {
	type visit struct {
		ch   *Channel
		dist int
	}
	known := map[*Channel]struct{}{origin: {}}
	queue := []visit{{origin, 0}}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for _, in := range cur.ch.interfaces {
			for _, out := range in.node.interfaces {
				next := out.channel
				if _, ok := known[next]; ok {
					continue
				}
				known[next] = struct{}{}
				queue = append(queue, visit{next, cur.dist + 1})
				sink(next, routeRecord{origin: origin, via: out, dist: cur.dist + 1})
			}
		}
	}
}

// resolvedRoute is a node's selected record for one destination channel.
type resolvedRoute struct {
	dest    *Channel
	out     *Interface // the node's interface the record was observed through
	gateway *Interface // next-hop interface on that same channel
	dist    int
}

// resolveRoutes collapses the records visible on each of n's channels into a
// minimum-distance entry per destination channel. At equal distance the first
// record encountered wins, walking interfaces in attachment order and each
// channel's records in accumulation order, so the result is deterministic.
func (n *Node) resolveRoutes() map[*Channel]resolvedRoute {
	routes := make(map[*Channel]resolvedRoute)
	for _, itf := range n.interfaces {
		for _, rec := range itf.channel.records {
			cur, ok := routes[rec.origin]
			if !ok || rec.dist < cur.dist {
				routes[rec.origin] = resolvedRoute{
					dest:    rec.origin,
					out:     itf,
					gateway: rec.via,
					dist:    rec.dist,
				}
			}
		}
	}
	return routes
}

// Route is one entry of a node's forwarding table. Out is the node's own
// interface the destination is reached through; Gateway is the next-hop
// interface on Out's channel. Out == Gateway marks a directly attached
// network, which dumps exclude.
type Route struct {
	Network netip.Prefix
	Out     *Interface
	Gateway *Interface
	Metric  int
}

// Local reports whether the route points at a directly attached network.
func (r Route) Local() bool {
	return r.Out == r.Gateway
}

// aggregatedRoutes resolves and aggregates n's table. Local entries are kept
// so callers can filter or use them; aggregation never merges them because a
// local gateway is never shared with a remote entry.
func (n *Node) aggregatedRoutes() []Route {
	resolved := n.resolveRoutes()
	entries := make([]Route, 0, len(resolved))
	for _, r := range resolved {
		entries = append(entries, Route{
			Network: r.dest.network,
			Out:     r.out,
			Gateway: r.gateway,
			Metric:  r.dist,
		})
	}
	return aggregate(entries)
}

// aggregate sorts entries by (base address, prefix length) and greedily
// merges adjacent entries into their immediate supernet when both share that
// supernet and the same gateway interface. Merges cascade against the new
// stack top, so a full tiling of sibling blocks collapses to one entry. With
// the table sorted, two entries share an immediate supernet only if they are
// exactly its two halves.
func aggregate(entries []Route) []Route {
	slices.SortFunc(entries, func(a, b Route) int {
		if c := a.Network.Addr().Compare(b.Network.Addr()); c != 0 {
			return c
		}
		return cmp.Compare(a.Network.Bits(), b.Network.Bits())
	})

	stack := make([]Route, 0, len(entries))
	for _, e := range entries {
		stack = append(stack, e)
		for len(stack) > 1 {
			top := stack[len(stack)-1]
			below := stack[len(stack)-2]
			super, ok := supernet(top.Network)
			if !ok || top.Gateway != below.Gateway {
				break
			}
			belowSuper, ok := supernet(below.Network)
			if !ok || super != belowSuper {
				break
			}
			merged := top
			merged.Network = super
			stack = stack[:len(stack)-2]
			stack = append(stack, merged)
		}
	}
	return stack
}

// supernet returns the prefix one bit shorter that encloses p.
func supernet(p netip.Prefix) (netip.Prefix, bool) {
	if p.Bits() == 0 {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(p.Addr(), p.Bits()-1).Masked(), true
}
