package topology

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"slices"
	"time"

	"github.com/cilium/cilium/pkg/ip"
	"golang.org/x/sync/errgroup"
)

// Topology owns every node and channel of one synthesized network. A
// topology is built once by the tier helpers, frozen by DistributeRoutes, and
// queried afterwards; there is no shared state between instances.
type Topology struct {
	log *slog.Logger

	nodes    []*Node
	channels []*Channel

	backboneNum    int
	aggregationNum int
	accessNum      int
	edgeNum        int
	externalNum    int

	distributed bool
}

// New returns an empty topology. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Topology {
	if log == nil {
		log = slog.Default()
	}
	return &Topology{log: log}
}

// Nodes returns all nodes in creation order.
func (t *Topology) Nodes() []*Node {
	return t.nodes
}

// Channels returns all channels in creation order.
func (t *Topology) Channels() []*Channel {
	return t.channels
}

// Node looks a node up by its identifier.
func (t *Topology) Node(name string) *Node {
	idx := slices.IndexFunc(t.nodes, func(n *Node) bool {
		return n.name == name
	})
	if idx == -1 {
		return nil
	}
	return t.nodes[idx]
}

// Link allocates one channel over block and joins a and b with one interface
// each. Empty interface ids are auto-generated. The channel id is derived
// from the nodes' short identifiers.
func (t *Topology) Link(a, b *Node, block netip.Prefix, delay time.Duration, idA, idB string) (*Channel, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	ch := newChannel(fmt.Sprintf("c_%s_%s", a.short, b.short), block, delay)
	if _, err := a.AttachInterface(ch, idA); err != nil {
		return nil, err
	}
	if _, err := b.AttachInterface(ch, idB); err != nil {
		return nil, err
	}
	t.channels = append(t.channels, ch)
	t.log.Debug("linked", "channel", ch.id, "network", ch.network, "delay", delay)
	return ch, nil
}

// addChannel registers a channel that was not created through Link, such as a
// stub segment with a single member.
func (t *Topology) addChannel(ch *Channel) *Channel {
	t.channels = append(t.channels, ch)
	return ch
}

// AddStub allocates a single-member channel hanging off one node, giving the
// node a network of its own.
func (t *Topology) AddStub(n *Node, block netip.Prefix, ifaceID string) (*Channel, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	ch := newChannel(fmt.Sprintf("c_%s", n.short), block, 0)
	if _, err := n.AttachInterface(ch, ifaceID); err != nil {
		return nil, err
	}
	return t.addChannel(ch), nil
}

// AddBackbone creates length pairs of backbone routers. Each pair shares an
// internal channel; the second router of every pair is chained to the first
// router of the next, closing into a ring, with delay on the ring channels.
func (t *Topology) AddBackbone(length int, pool *Pool, delay time.Duration) ([][2]*Node, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	pairs := make([][2]*Node, 0, length)
	for i := 0; i < length; i++ {
		num := t.backboneNum + i
		a := newBackboneNode(num, 0)
		b := newBackboneNode(num, 1)
		block, err := pool.Allocate()
		if err != nil {
			return nil, err
		}
		if _, err := t.Link(a, b, block, 0, "", ""); err != nil {
			return nil, err
		}
		t.nodes = append(t.nodes, a, b)
		pairs = append(pairs, [2]*Node{a, b})
	}

	for i := 0; i < length; i++ {
		block, err := pool.Allocate()
		if err != nil {
			return nil, err
		}
		if _, err := t.Link(pairs[i][1], pairs[(i+1)%length][0], block, delay, "", ""); err != nil {
			return nil, err
		}
	}

	t.backboneNum += length
	return pairs, nil
}

// AddAggregation creates length pairs of aggregation routers chained in a
// line hung between uplinkA and uplinkB. Pair-internal channels carry no
// delay; the chain channels carry delay.
func (t *Topology) AddAggregation(uplinkA, uplinkB *Node, length int, pool *Pool, delay time.Duration) ([][2]*Node, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	pairs := make([][2]*Node, 0, length)
	for i := 0; i < length; i++ {
		num := t.aggregationNum + i
		a := newAggregationNode(num, 0)
		b := newAggregationNode(num, 1)
		block, err := pool.Allocate()
		if err != nil {
			return nil, err
		}
		if _, err := t.Link(a, b, block, 0, "", ""); err != nil {
			return nil, err
		}
		t.nodes = append(t.nodes, a, b)
		pairs = append(pairs, [2]*Node{a, b})
	}

	hops := make([][2]*Node, 0, length+1)
	for i := 0; i < length; i++ {
		if i == 0 {
			hops = append(hops, [2]*Node{uplinkA, pairs[0][0]})
		} else {
			hops = append(hops, [2]*Node{pairs[i-1][1], pairs[i][0]})
		}
	}
	if length > 0 {
		hops = append(hops, [2]*Node{pairs[length-1][1], uplinkB})
	}
	for _, hop := range hops {
		block, err := pool.Allocate()
		if err != nil {
			return nil, err
		}
		if _, err := t.Link(hop[0], hop[1], block, delay, "", ""); err != nil {
			return nil, err
		}
	}

	t.aggregationNum += length
	return pairs, nil
}

// AddAccess creates a chain of length access routers hanging off uplink, each
// chain channel carrying delay.
func (t *Topology) AddAccess(uplink *Node, length int, pool *Pool, delay time.Duration) ([]*Node, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	nodes := make([]*Node, 0, length)
	for i := 0; i < length; i++ {
		nodes = append(nodes, newAccessNode(t.accessNum+i))
	}
	t.nodes = append(t.nodes, nodes...)

	prev := uplink
	for _, cur := range nodes {
		block, err := pool.Allocate()
		if err != nil {
			return nil, err
		}
		if _, err := t.Link(prev, cur, block, delay, "", ""); err != nil {
			return nil, err
		}
		prev = cur
	}

	t.accessNum += length
	return nodes, nil
}

// AddEdge creates one edge node homed to every given uplink through its own
// channel.
func (t *Topology) AddEdge(uplinks []*Node, pool *Pool) (*Node, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	node := newEdgeNode(t.edgeNum)
	for _, uplink := range uplinks {
		block, err := pool.Allocate()
		if err != nil {
			return nil, err
		}
		if _, err := t.Link(uplink, node, block, 0, "", ""); err != nil {
			return nil, err
		}
	}
	t.edgeNum++
	t.nodes = append(t.nodes, node)
	return node, nil
}

// AddExternal creates an external host on a caller-owned network and links it
// to uplink. The network must not overlap any block already placed in the
// topology. ifaceID names the host-side interface; empty means auto.
func (t *Topology) AddExternal(uplink *Node, network netip.Prefix, ifaceID string) (*Node, error) {
	if t.distributed {
		return nil, ErrTopologyFrozen
	}
	network = network.Masked()
	for _, ch := range t.channels {
		if ch.network.Overlaps(network) {
			return nil, fmt.Errorf("external network %s overlaps channel %s (%s)", network, ch.id, ch.network)
		}
	}
	node := newExternalNode(fmt.Sprintf("ext%d", t.externalNum), nil)
	if _, err := t.Link(uplink, node, network, 0, "", ifaceID); err != nil {
		return nil, err
	}
	t.externalNum++
	t.nodes = append(t.nodes, node)
	return node, nil
}

// DistributeRoutes floods reachability once per channel, in creation order.
// Prior records are cleared first, so re-running it reproduces an identical
// route set. After it returns, the graph is frozen.
func (t *Topology) DistributeRoutes() {
	t.log.Info("distributing routes", "channels", len(t.channels))
	for _, ch := range t.channels {
		ch.records = ch.records[:0]
	}
	for _, origin := range t.channels {
		flood(origin, func(on *Channel, rec routeRecord) {
			on.records = append(on.records, rec)
		})
	}
	t.distributed = true
}

// DistributeRoutesParallel is DistributeRoutes with one flood per origin
// channel running concurrently. Each flood writes to a private scratch list;
// the scratches are merged in channel creation order, so the resulting record
// order is identical to the sequential pass.
func (t *Topology) DistributeRoutesParallel() error {
	t.log.Info("distributing routes", "channels", len(t.channels), "parallel", true)
	for _, ch := range t.channels {
		ch.records = ch.records[:0]
	}

	type placed struct {
		on  *Channel
		rec routeRecord
	}
	scratch := make([][]placed, len(t.channels))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, origin := range t.channels {
		g.Go(func() error {
			flood(origin, func(on *Channel, rec routeRecord) {
				scratch[i] = append(scratch[i], placed{on, rec})
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, recs := range scratch {
		for _, p := range recs {
			p.on.records = append(p.on.records, p.rec)
		}
	}
	t.distributed = true
	return nil
}

// NodeRoutes returns name's aggregated route table with directly attached
// networks excluded.
func (t *Topology) NodeRoutes(name string) ([]Route, error) {
	if !t.distributed {
		return nil, ErrDistributionNotRun
	}
	n := t.Node(name)
	if n == nil {
		return nil, fmt.Errorf("unknown node %q", name)
	}
	routes := make([]Route, 0)
	for _, r := range n.aggregatedRoutes() {
		if r.Local() {
			continue
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// Networks returns the coalesced set of every block placed in the topology:
// all channel networks plus external extra networks.
func (t *Topology) Networks() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(t.channels))
	for _, ch := range t.channels {
		prefixes = append(prefixes, ch.network)
	}
	for _, n := range t.nodes {
		prefixes = append(prefixes, n.extraNetworks...)
	}
	v4, v6 := ip.CoalesceCIDRs(toIPNets(prefixes))
	return fromIPNets(append(v4, v6...))
}

func toIPNets(prefixes []netip.Prefix) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(prefixes))
	for _, p := range prefixes {
		if p.IsValid() {
			nets = append(nets, &net.IPNet{
				IP:   p.Addr().AsSlice(),
				Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
			})
		}
	}
	return nets
}

func fromIPNets(nets []*net.IPNet) []netip.Prefix {
	output := make([]netip.Prefix, 0, len(nets))
	for _, n := range nets {
		if addr, ok := netip.AddrFromSlice(n.IP); ok {
			ones, _ := n.Mask.Size()
			output = append(output, netip.PrefixFrom(addr.Unmap(), ones))
		}
	}
	return output
}
