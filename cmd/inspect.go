package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <node>",
	Aliases: []string{"i"},
	Short:   "Print a node's aggregated route table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := buildLogger()
		if err != nil {
			return err
		}
		topo, err := assemble(cmd, log)
		if err != nil {
			return err
		}

		routes, err := topo.NodeRoutes(args[0])
		if err != nil {
			return err
		}
		for _, r := range routes {
			fmt.Printf("%s via %s dev %s metric %d\n",
				r.Network, r.Gateway.Addr(), r.Out.ID(), r.Metric)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addProfileFlags(inspectCmd)
}
