package topology

import "fmt"

// SnapshotVersion is the format version stamped on every dump.
const SnapshotVersion = "1.0"

// Snapshot is the plain nested-record projection of a distributed topology,
// consumed by the emulation-platform serializer.
type Snapshot struct {
	Version  string        `yaml:"version" json:"version"`
	Nodes    []NodeDump    `yaml:"nodes" json:"nodes"`
	Channels []ChannelDump `yaml:"channels" json:"channels"`
}

type NodeDump struct {
	ID         string          `yaml:"id" json:"id"`
	Device     string          `yaml:"device" json:"device"`
	Component  string          `yaml:"component" json:"component"`
	Interfaces []InterfaceDump `yaml:"interfaces" json:"interfaces"`
	Routes     []RouteDump     `yaml:"routes,omitempty" json:"routes,omitempty"`
}

type InterfaceDump struct {
	ID      string `yaml:"id" json:"id"`
	Channel string `yaml:"channel" json:"channel"`
	IP      string `yaml:"ip" json:"ip"`
}

type RouteDump struct {
	Network string `yaml:"network" json:"network"`
	Gateway string `yaml:"gateway" json:"gateway"`
	Metric  int    `yaml:"metric" json:"metric"`
}

type ChannelDump struct {
	ID    string `yaml:"id" json:"id"`
	Delay string `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// RosterEntry is the address-only projection of one edge node, used for the
// companion address file.
type RosterEntry struct {
	ID         string   `json:"id" yaml:"id"`
	Interfaces []string `json:"interfaces" yaml:"interfaces"`
}

// Dump renders the whole topology. Route tables are present only on nodes
// configured to report them, aggregated, with directly attached networks
// excluded.
func (t *Topology) Dump() (*Snapshot, error) {
	if !t.distributed {
		return nil, ErrDistributionNotRun
	}

	snap := &Snapshot{Version: SnapshotVersion}
	for _, n := range t.nodes {
		nd := NodeDump{
			ID:         n.name,
			Device:     n.device,
			Component:  n.component,
			Interfaces: make([]InterfaceDump, 0, len(n.interfaces)),
		}
		for _, itf := range n.interfaces {
			nd.Interfaces = append(nd.Interfaces, InterfaceDump{
				ID:      itf.id,
				Channel: itf.channel.id,
				IP:      itf.Prefix().String(),
			})
		}
		if n.includeRoutes {
			nd.Routes = make([]RouteDump, 0)
			for _, r := range n.aggregatedRoutes() {
				if r.Local() {
					continue
				}
				nd.Routes = append(nd.Routes, RouteDump{
					Network: r.Network.String(),
					Gateway: r.Gateway.Addr().String(),
					Metric:  r.Metric,
				})
			}
		}
		snap.Nodes = append(snap.Nodes, nd)
	}

	for _, ch := range t.channels {
		cd := ChannelDump{ID: ch.id}
		if ch.delay != 0 {
			cd.Delay = fmt.Sprintf("%dus", ch.delay.Microseconds())
		}
		snap.Channels = append(snap.Channels, cd)
	}
	return snap, nil
}

// EdgeRoster lists the addresses of every edge node. It carries no routes and
// is available before distribution.
func (t *Topology) EdgeRoster() []RosterEntry {
	roster := make([]RosterEntry, 0)
	for _, n := range t.nodes {
		if n.role != RoleEdge {
			continue
		}
		entry := RosterEntry{ID: n.name, Interfaces: make([]string, 0, len(n.interfaces))}
		for _, itf := range n.interfaces {
			entry.Interfaces = append(entry.Interfaces, itf.Addr().String())
		}
		roster = append(roster, entry)
	}
	return roster
}
