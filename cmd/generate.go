package cmd

import (
	"log/slog"
	"net/netip"

	"github.com/netsynth/topogen/emit"
	"github.com/netsynth/topogen/topology"
	"github.com/spf13/cobra"
)

var (
	profilePath  string
	topologyPath string
	rosterPath   string
	parallel     bool

	flagRoot      string
	flagSubPrefix int
	flagBackbone  int
	flagAggr      int
	flagAccess    int
	flagBbDelay   int
	flagAggDelay  int
	flagAccDelay  int
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Synthesize a topology and write the output files",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}

		topo, err := assemble(cmd, log)
		if err != nil {
			return err
		}

		snap, err := topo.Dump()
		if err != nil {
			return err
		}
		if err := emit.WriteTopologyFile(topologyPath, snap); err != nil {
			return err
		}
		if err := emit.WriteRosterFile(rosterPath, topo.EdgeRoster()); err != nil {
			return err
		}

		log.Info("wrote output",
			"topology", topologyPath,
			"roster", rosterPath,
			"networks", topo.Networks())
		return nil
	},
}

// assemble builds and distributes a topology from the profile file overlaid
// with any explicitly set flags.
func assemble(cmd *cobra.Command, log *slog.Logger) (*topology.Topology, error) {
	p := DefaultProfile()
	if profilePath != "" {
		var err error
		p, err = loadProfile(profilePath)
		if err != nil {
			return nil, err
		}
	}
	if err := overlayFlags(cmd, &p); err != nil {
		return nil, err
	}

	topo, err := buildTopology(log, p)
	if err != nil {
		return nil, err
	}

	if parallel {
		if err := topo.DistributeRoutesParallel(); err != nil {
			return nil, err
		}
	} else {
		topo.DistributeRoutes()
	}
	return topo, nil
}

func overlayFlags(cmd *cobra.Command, p *Profile) error {
	if cmd.Flags().Changed("root") {
		root, err := netip.ParsePrefix(flagRoot)
		if err != nil {
			return err
		}
		p.Root = root
	}
	if cmd.Flags().Changed("sub-prefix") {
		p.SubPrefix = flagSubPrefix
	}
	if cmd.Flags().Changed("backbone") {
		p.Backbone = flagBackbone
	}
	if cmd.Flags().Changed("aggregation") {
		p.Aggregation = flagAggr
	}
	if cmd.Flags().Changed("access") {
		p.Access = flagAccess
	}
	if cmd.Flags().Changed("backbone-delay") {
		p.BackboneDelay = flagBbDelay
	}
	if cmd.Flags().Changed("aggregation-delay") {
		p.AggregationDelay = flagAggDelay
	}
	if cmd.Flags().Changed("access-delay") {
		p.AccessDelay = flagAccDelay
	}
	return nil
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "generation profile file")
	cmd.Flags().StringVar(&flagRoot, "root", "10.96.0.0/16", "root address block")
	cmd.Flags().IntVar(&flagSubPrefix, "sub-prefix", 28, "per-channel sub-prefix length")
	cmd.Flags().IntVar(&flagBackbone, "backbone", 20, "backbone ring length (pairs)")
	cmd.Flags().IntVar(&flagAggr, "aggregation", 3, "aggregation chain length per backbone segment (pairs)")
	cmd.Flags().IntVar(&flagAccess, "access", 3, "access chain length per aggregation pair")
	cmd.Flags().IntVar(&flagBbDelay, "backbone-delay", 25, "backbone ring delay (us)")
	cmd.Flags().IntVar(&flagAggDelay, "aggregation-delay", 150, "aggregation chain delay (us)")
	cmd.Flags().IntVar(&flagAccDelay, "access-delay", 100, "access chain delay (us)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "flood channels concurrently")
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addProfileFlags(generateCmd)
	generateCmd.Flags().StringVarP(&topologyPath, "topology", "t", "topology.yaml", "path of the resulting topology file")
	generateCmd.Flags().StringVarP(&rosterPath, "roster", "r", "edge-ips.json", "path of the resulting edge address file")
}
