package cmd

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <node> <address>",
	Short: "Look an address up in a node's forwarding table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := netip.ParseAddr(args[1])
		if err != nil {
			return err
		}

		log, err := buildLogger()
		if err != nil {
			return err
		}
		topo, err := assemble(cmd, log)
		if err != nil {
			return err
		}

		tbl, err := topo.ForwardingTable(args[0])
		if err != nil {
			return err
		}
		entry, ok := tbl.Lookup(addr)
		if !ok {
			return fmt.Errorf("no route to %s from %s", addr, args[0])
		}
		if entry.Local {
			fmt.Printf("%s is directly attached via %s (%s)\n", addr, entry.Network, entry.Gateway)
		} else {
			fmt.Printf("%s via %s (%s) metric %d\n", addr, entry.Gateway, entry.Network, entry.Metric)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	addProfileFlags(resolveCmd)
}
