package topology

import (
	"log/slog"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newQuietTopology() *Topology {
	return New(slog.New(slog.DiscardHandler))
}

// buildChain wires five nodes into a line, producing four channels
// A-B-C-D joined through the three middle nodes.
func buildChain(t *testing.T) (*Topology, []*Channel, []*Node) {
	t.Helper()
	pool, err := NewPool(netip.MustParsePrefix("10.0.0.0/24"), 30)
	require.NoError(t, err)

	topo := newQuietTopology()
	nodes := make([]*Node, 5)
	for i := range nodes {
		nodes[i] = newAccessNode(i)
	}
	topo.nodes = append(topo.nodes, nodes...)

	channels := make([]*Channel, 0, 4)
	for i := 0; i < 4; i++ {
		block, err := pool.Allocate()
		require.NoError(t, err)
		ch, err := topo.Link(nodes[i], nodes[i+1], block, 0, "", "")
		require.NoError(t, err)
		channels = append(channels, ch)
	}
	return topo, channels, nodes
}

func recordFor(ch, origin *Channel) (routeRecord, bool) {
	for _, rec := range ch.records {
		if rec.origin == origin {
			return rec, true
		}
	}
	return routeRecord{}, false
}

func TestFloodChainDistances(t *testing.T) {
	topo, chans, _ := buildChain(t)
	topo.DistributeRoutes()

	chA, chB, chC, chD := chans[0], chans[1], chans[2], chans[3]

	for _, tc := range []struct {
		on, origin *Channel
		dist       int
	}{
		{chB, chA, 1},
		{chC, chA, 2},
		{chD, chA, 3},
		{chC, chD, 1},
		{chB, chD, 2},
		{chA, chD, 3},
		{chA, chB, 1},
		{chD, chC, 1},
	} {
		rec, ok := recordFor(tc.on, tc.origin)
		require.True(t, ok, "no record for %s on %s", tc.origin.ID(), tc.on.ID())
		assert.Equal(t, tc.dist, rec.dist, "%s seen from %s", tc.origin.ID(), tc.on.ID())
	}

	// each channel collects exactly one record per reachable origin
	for _, ch := range chans {
		assert.Len(t, ch.records, 3)
	}
}

// TestRoundTripRouteTables chains X-Y-Z with a stub network on each end and
// checks the emitted tables of all three nodes, including the supernet merge
// on the far side.
func TestRoundTripRouteTables(t *testing.T) {
	pool, err := NewPool(netip.MustParsePrefix("10.0.0.0/24"), 30)
	require.NoError(t, err)

	topo := newQuietTopology()
	x, y, z := newAccessNode(0), newAccessNode(1), newAccessNode(2)
	topo.nodes = append(topo.nodes, x, y, z)

	alloc := func() netip.Prefix {
		block, err := pool.Allocate()
		require.NoError(t, err)
		return block
	}

	_, err = topo.AddStub(x, alloc(), "") // 10.0.0.0/30
	require.NoError(t, err)
	_, err = topo.Link(x, y, alloc(), 0, "", "") // 10.0.0.4/30: x=.5 y=.6
	require.NoError(t, err)
	_, err = topo.Link(y, z, alloc(), 0, "", "") // 10.0.0.8/30: y=.9 z=.10
	require.NoError(t, err)
	_, err = topo.AddStub(z, alloc(), "") // 10.0.0.12/30
	require.NoError(t, err)

	topo.DistributeRoutes()

	// Y reaches both stubs at one hop through the neighbour on each side.
	yRoutes, err := topo.NodeRoutes(y.Name())
	require.NoError(t, err)
	require.Len(t, yRoutes, 2)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/30"), yRoutes[0].Network)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), yRoutes[0].Gateway.Addr())
	assert.Equal(t, 1, yRoutes[0].Metric)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.12/30"), yRoutes[1].Network)
	assert.Equal(t, netip.MustParseAddr("10.0.0.10"), yRoutes[1].Gateway.Addr())
	assert.Equal(t, 1, yRoutes[1].Metric)

	// X sees the far channel and Z's stub through the same gateway; the two
	// sibling /30s collapse into their /29.
	xRoutes, err := topo.NodeRoutes(x.Name())
	require.NoError(t, err)
	require.Len(t, xRoutes, 1)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.8/29"), xRoutes[0].Network)
	assert.Equal(t, netip.MustParseAddr("10.0.0.6"), xRoutes[0].Gateway.Addr())
	assert.Equal(t, 2, xRoutes[0].Metric)

	// mirror image on Z; the merged entry keeps the nearer sibling's metric
	zRoutes, err := topo.NodeRoutes(z.Name())
	require.NoError(t, err)
	require.Len(t, zRoutes, 1)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/29"), zRoutes[0].Network)
	assert.Equal(t, netip.MustParseAddr("10.0.0.9"), zRoutes[0].Gateway.Addr())
	assert.Equal(t, 1, zRoutes[0].Metric)
}

func TestLocalNetworksExcluded(t *testing.T) {
	topo, _, nodes := buildChain(t)
	topo.DistributeRoutes()

	for _, n := range nodes {
		routes, err := topo.NodeRoutes(n.Name())
		require.NoError(t, err)
		for _, r := range routes {
			for _, itf := range n.Interfaces() {
				assert.NotEqual(t, itf.Channel().Network(), r.Network,
					"%s advertises its own network %s", n.Name(), r.Network)
			}
		}
	}
}

func TestIsolatedNodeHasEmptyTable(t *testing.T) {
	topo := newQuietTopology()
	n := newAccessNode(0)
	topo.nodes = append(topo.nodes, n)
	_, err := topo.AddStub(n, netip.MustParsePrefix("10.0.0.0/30"), "")
	require.NoError(t, err)

	topo.DistributeRoutes()

	routes, err := topo.NodeRoutes(n.Name())
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestDisconnectedPartitionsStayApart(t *testing.T) {
	pool, err := NewPool(netip.MustParsePrefix("10.0.0.0/24"), 30)
	require.NoError(t, err)

	topo := newQuietTopology()
	nodes := make([]*Node, 4)
	for i := range nodes {
		nodes[i] = newAccessNode(i)
	}
	topo.nodes = append(topo.nodes, nodes...)

	blockAB, _ := pool.Allocate()
	chAB, err := topo.Link(nodes[0], nodes[1], blockAB, 0, "", "")
	require.NoError(t, err)
	blockCD, _ := pool.Allocate()
	chCD, err := topo.Link(nodes[2], nodes[3], blockCD, 0, "", "")
	require.NoError(t, err)

	topo.DistributeRoutes()

	assert.Empty(t, chAB.records)
	assert.Empty(t, chCD.records)
	routes, err := topo.NodeRoutes(nodes[0].Name())
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func mkRoute(network string, gw *Interface, metric int) Route {
	return Route{
		Network: netip.MustParsePrefix(network),
		Out:     &Interface{id: "out"},
		Gateway: gw,
		Metric:  metric,
	}
}

func TestAggregateFullTiling(t *testing.T) {
	gw := &Interface{id: "gw"}
	merged := aggregate([]Route{
		mkRoute("10.1.0.0/30", gw, 1),
		mkRoute("10.1.0.4/30", gw, 2),
		mkRoute("10.1.0.8/30", gw, 3),
		mkRoute("10.1.0.12/30", gw, 4),
	})

	require.Len(t, merged, 1)
	assert.Equal(t, netip.MustParsePrefix("10.1.0.0/28"), merged[0].Network)
	assert.Same(t, gw, merged[0].Gateway)
	assert.Equal(t, 4, merged[0].Metric)
}

func TestAggregateMixedGateways(t *testing.T) {
	gwA := &Interface{id: "a"}
	gwB := &Interface{id: "b"}
	merged := aggregate([]Route{
		mkRoute("10.1.0.0/30", gwA, 1),
		mkRoute("10.1.0.4/30", gwA, 1),
		mkRoute("10.1.0.8/30", gwB, 1),
		mkRoute("10.1.0.12/30", gwA, 1),
	})

	require.Len(t, merged, 3)
	assert.Equal(t, netip.MustParsePrefix("10.1.0.0/29"), merged[0].Network)
	assert.Same(t, gwA, merged[0].Gateway)
	assert.Equal(t, netip.MustParsePrefix("10.1.0.8/30"), merged[1].Network)
	assert.Same(t, gwB, merged[1].Gateway)
	assert.Equal(t, netip.MustParsePrefix("10.1.0.12/30"), merged[2].Network)
	assert.Same(t, gwA, merged[2].Gateway)
}

func TestAggregateSortsInput(t *testing.T) {
	gw := &Interface{id: "gw"}
	merged := aggregate([]Route{
		mkRoute("10.1.0.12/30", gw, 1),
		mkRoute("10.1.0.0/30", gw, 1),
		mkRoute("10.1.0.8/30", gw, 1),
		mkRoute("10.1.0.4/30", gw, 1),
	})

	require.Len(t, merged, 1)
	assert.Equal(t, netip.MustParsePrefix("10.1.0.0/28"), merged[0].Network)
}

func TestAggregateLeavesNonSiblingsAlone(t *testing.T) {
	gw := &Interface{id: "gw"}
	merged := aggregate([]Route{
		mkRoute("10.1.0.0/30", gw, 1),
		mkRoute("10.1.0.8/30", gw, 1),
	})
	require.Len(t, merged, 2)

	assert.Empty(t, aggregate(nil))
}

func TestDistributeRoutesIdempotent(t *testing.T) {
	topo, chans, _ := buildChain(t)

	topo.DistributeRoutes()
	first, err := topo.Dump()
	require.NoError(t, err)

	topo.DistributeRoutes()
	second, err := topo.Dump()
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	for _, ch := range chans {
		assert.Len(t, ch.records, 3, "records must not accumulate across runs")
	}
}

func TestParallelDistributionMatchesSequential(t *testing.T) {
	topo, _, _ := buildChain(t)

	topo.DistributeRoutes()
	sequential, err := topo.Dump()
	require.NoError(t, err)

	require.NoError(t, topo.DistributeRoutesParallel())
	parallel, err := topo.Dump()
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(sequential, parallel))
}
