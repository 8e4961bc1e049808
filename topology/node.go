package topology

import (
	"fmt"
	"net/netip"
)

// Role identifies a node's tier in the synthesized hierarchy.
type Role int

const (
	RoleBackbone Role = iota
	RoleAggregation
	RoleAccess
	RoleEdge
	RoleExternal
)

func (r Role) String() string {
	switch r {
	case RoleBackbone:
		return "backbone"
	case RoleAggregation:
		return "aggregation"
	case RoleAccess:
		return "access"
	case RoleEdge:
		return "edge"
	case RoleExternal:
		return "external"
	}
	return "unknown"
}

// Node is one device in the topology. Interfaces are ordered by attachment;
// the position of an interface in the list is its ordinal for life.
type Node struct {
	role      Role
	name      string
	short     string
	device    string
	component string

	// IncludeRoutes controls whether the node emits a route table in dumps.
	includeRoutes bool

	interfaces []*Interface

	// extraNetworks holds caller-owned blocks announced by external hosts
	// on top of their channel networks.
	extraNetworks []netip.Prefix
}

func newNode(role Role, name, short, device, component string, includeRoutes bool) *Node {
	return &Node{
		role:          role,
		name:          name,
		short:         short,
		device:        device,
		component:     component,
		includeRoutes: includeRoutes,
	}
}

func newBackboneNode(num, sub int) *Node {
	return newNode(RoleBackbone,
		fmt.Sprintf("backbone%d.%d", num, sub),
		fmt.Sprintf("bb%d.%d", num, sub),
		"router", "simple-router", true)
}

func newAggregationNode(num, sub int) *Node {
	return newNode(RoleAggregation,
		fmt.Sprintf("aggregation%d.%d", num, sub),
		fmt.Sprintf("agg%d.%d", num, sub),
		"router", "simple-router", true)
}

func newAccessNode(num int) *Node {
	return newNode(RoleAccess,
		fmt.Sprintf("access%d", num),
		fmt.Sprintf("acc%d", num),
		"router", "simple-router", true)
}

func newEdgeNode(num int) *Node {
	name := fmt.Sprintf("edge%d", num)
	return newNode(RoleEdge, name, name, "container", "workload", true)
}

func newExternalNode(id string, extra []netip.Prefix) *Node {
	n := newNode(RoleExternal, id, id, "host", "host", false)
	n.extraNetworks = extra
	return n
}

// Name returns the node's human identifier.
func (n *Node) Name() string {
	return n.name
}

// Short returns the abbreviated identifier used in channel ids.
func (n *Node) Short() string {
	return n.short
}

func (n *Node) Role() Role {
	return n.role
}

// IncludeRoutes reports whether the node emits a route table.
func (n *Node) IncludeRoutes() bool {
	return n.includeRoutes
}

// Interfaces returns the node's interfaces in attachment order. The slice is
// owned by the node and must not be mutated.
func (n *Node) Interfaces() []*Interface {
	return n.interfaces
}

// ExtraNetworks returns additional blocks announced by the node.
func (n *Node) ExtraNetworks() []netip.Prefix {
	return n.extraNetworks
}

// AttachInterface creates an interface owned by n and registers it as the
// next member of ch. If explicitID is empty, the interface is named i<n>
// where n is the count of interfaces the node already owns.
func (n *Node) AttachInterface(ch *Channel, explicitID string) (*Interface, error) {
	id := explicitID
	if id == "" {
		id = fmt.Sprintf("i%d", len(n.interfaces))
	}
	itf := &Interface{node: n, channel: ch, id: id}
	if err := ch.register(itf); err != nil {
		return nil, err
	}
	n.interfaces = append(n.interfaces, itf)
	return itf, nil
}
