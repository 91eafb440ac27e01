package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dmxport"
)

var sendCmd = &cobra.Command{
	Use:   "send [value]...",
	Short: "Send a single DMX frame",
	Long: `Send opens the selected port, writes one frame built from the given
channel values (channel 1 first, 0-255 each), and closes the port again.`,
	Args: cobra.RangeArgs(1, dmxport.MaxChannels),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame := make([]byte, len(args))
		for i, arg := range args {
			v, err := strconv.ParseUint(arg, 10, 8)
			if err != nil {
				return fmt.Errorf("channel %d: bad value %q", i+1, arg)
			}
			frame[i] = byte(v)
		}

		port, err := selectPort()
		if err != nil {
			return err
		}
		if err := port.Open(); err != nil {
			return err
		}
		defer port.Close()

		if err := port.Write(frame); err != nil {
			return err
		}
		fmt.Printf("sent %d channels to %s\n", len(frame), port)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
