package cmd

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/netsynth/topogen/topology"
)

// ExternalProfile places one external host on a caller-owned network.
type ExternalProfile struct {
	Network netip.Prefix `yaml:"network"`
	// Uplink is the id of the node the host hangs off; empty picks the first
	// backbone router.
	Uplink string `yaml:"uplink,omitempty"`
	// Interface optionally names the host-side interface.
	Interface string `yaml:"interface,omitempty"`
}

// Profile describes one topology generation run. Delays are in microseconds.
type Profile struct {
	Root      netip.Prefix `yaml:"root"`
	SubPrefix int          `yaml:"sub_prefix"`

	Backbone    int `yaml:"backbone"`
	Aggregation int `yaml:"aggregation"`
	Access      int `yaml:"access"`

	BackboneDelay    int `yaml:"backbone_delay"`
	AggregationDelay int `yaml:"aggregation_delay"`
	AccessDelay      int `yaml:"access_delay"`

	Externals []ExternalProfile `yaml:"externals,omitempty"`
}

// DefaultProfile mirrors the shape the emulation scenarios were originally
// generated with.
func DefaultProfile() Profile {
	return Profile{
		Root:             netip.MustParsePrefix("10.96.0.0/16"),
		SubPrefix:        28,
		Backbone:         20,
		Aggregation:      3,
		Access:           3,
		BackboneDelay:    25,
		AggregationDelay: 150,
		AccessDelay:      100,
		Externals: []ExternalProfile{
			{Network: netip.MustParsePrefix("10.100.101.0/24"), Interface: "pc0"},
			{Network: netip.MustParsePrefix("10.100.102.0/24"), Interface: "rtu0"},
		},
	}
}

func loadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	file, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(file, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// buildTopology runs the tiered construction recipe: a backbone ring, an
// aggregation chain between every consecutive backbone pair, an access chain
// off every aggregation pair, and one edge node homed to every router pair or
// access router, plus external hosts.
func buildTopology(log *slog.Logger, p Profile) (*topology.Topology, error) {
	pool, err := topology.NewPool(p.Root, p.SubPrefix)
	if err != nil {
		return nil, err
	}

	topo := topology.New(log)
	backbone, err := topo.AddBackbone(p.Backbone, pool, usec(p.BackboneDelay))
	if err != nil {
		return nil, err
	}
	for i := range backbone {
		if _, err := topo.AddEdge(backbone[i][:], pool); err != nil {
			return nil, err
		}

		aggregation, err := topo.AddAggregation(
			backbone[i][1], backbone[(i+1)%len(backbone)][0],
			p.Aggregation, pool, usec(p.AggregationDelay))
		if err != nil {
			return nil, err
		}
		for j := range aggregation {
			if _, err := topo.AddEdge(aggregation[j][:], pool); err != nil {
				return nil, err
			}

			access, err := topo.AddAccess(aggregation[j][0], p.Access, pool, usec(p.AccessDelay))
			if err != nil {
				return nil, err
			}
			for _, acc := range access {
				if _, err := topo.AddEdge([]*topology.Node{acc}, pool); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, ext := range p.Externals {
		uplink := topo.Node(ext.Uplink)
		if ext.Uplink == "" && len(backbone) > 0 {
			uplink = backbone[0][0]
		}
		if uplink == nil {
			return nil, fmt.Errorf("external uplink %q not found", ext.Uplink)
		}
		if _, err := topo.AddExternal(uplink, ext.Network, ext.Interface); err != nil {
			return nil, err
		}
	}

	log.Debug("topology built",
		"nodes", len(topo.Nodes()),
		"channels", len(topo.Channels()),
		"free", pool.Remaining())
	return topo, nil
}

func usec(n int) time.Duration {
	return time.Duration(n) * time.Microsecond
}
