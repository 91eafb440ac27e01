package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dmxport"
)

var (
	testPattern  string
	testLevel    uint8
	testFrames   int
	testFPS      int
	testChannels int
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Stream a test pattern at the fixtures",
	Long: `Test opens the selected port and streams a simple pattern so wiring
and addressing can be checked by eye:

  same    every channel held at --level
  rising  every channel ramps from 0 to --level and wraps
  strobe  every channel alternates between 0 and --level`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if testChannels < 1 || testChannels > dmxport.MaxChannels {
			return fmt.Errorf("--channels must be 1..%d", dmxport.MaxChannels)
		}

		port, err := selectPort()
		if err != nil {
			return err
		}
		if err := port.Open(); err != nil {
			return err
		}
		defer port.Close()

		frame := make([]byte, testChannels)
		tick := time.NewTicker(time.Second / time.Duration(testFPS))
		defer tick.Stop()

		for n := 0; n < testFrames; n++ {
			fillPattern(frame, testPattern, testLevel, n)
			if err := port.Write(frame); err != nil {
				return err
			}
			<-tick.C
		}

		// Leave the rig dark.
		for i := range frame {
			frame[i] = 0
		}
		return port.Write(frame)
	},
}

func fillPattern(frame []byte, pattern string, level uint8, n int) {
	for i := range frame {
		switch pattern {
		case "rising":
			frame[i] = uint8(n % (int(level) + 1))
		case "strobe":
			frame[i] = level * uint8(n%2)
		default: // same
			frame[i] = level
		}
	}
}

func init() {
	testCmd.Flags().StringVar(&testPattern, "pattern", "same", "pattern: same, rising, strobe")
	testCmd.Flags().Uint8Var(&testLevel, "level", 255, "peak channel value")
	testCmd.Flags().IntVar(&testFrames, "frames", 100, "number of frames to send")
	testCmd.Flags().IntVar(&testFPS, "fps", 20, "frames per second")
	testCmd.Flags().IntVar(&testChannels, "channels", dmxport.MaxChannels, "channels per frame")
	rootCmd.AddCommand(testCmd)
}
