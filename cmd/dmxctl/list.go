package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dmxport"
)

var (
	listWait time.Duration
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate reachable DMX output ports",
	Long: `List scans /dev for USB-serial adapters, polls the local network for
Art-Net nodes, and prints one identity per line. With --json the persisted
form is printed instead, suitable for --identity on other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := dmxport.DiscoverPorts(log, listWait)
		for _, id := range ids {
			if listJSON {
				data, err := id.Marshal()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				continue
			}
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().DurationVar(&listWait, "wait", 2*time.Second, "how long to wait for Art-Net poll replies")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print persisted identities instead of descriptions")
	rootCmd.AddCommand(listCmd)
}
