// Command dmxctl is the operator tool for DMX output ports: enumerate what
// is reachable, persist port identities, and push test frames at fixtures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dmxport"
	"dmxport/internal/config"
	"dmxport/internal/logger"
)

var (
	// Global flags.
	logLevel     string
	identityFile string
	deviceFlag   string
	addressFlag  string
	universeFlag uint16

	// Shared state set during PersistentPreRun.
	log *logger.Log
)

var rootCmd = &cobra.Command{
	Use:           "dmxctl",
	Short:         "Inspect and exercise DMX output ports",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logger.NewLogger(config.LogConf{Level: logLevel})
		if err != nil {
			return err
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&identityFile, "identity", "", "path to a persisted port identity")
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "serial device path of an Enttec adapter")
	rootCmd.PersistentFlags().StringVar(&addressFlag, "address", "", "IPv4 address of an Art-Net node")
	rootCmd.PersistentFlags().Uint16Var(&universeFlag, "universe", 0, "Art-Net port address")
}

// selectPort resolves the port selection flags into a closed port. With no
// selection at all the offline port is used, so every command can be dry-run
// without hardware.
func selectPort() (dmxport.Port, error) {
	switch {
	case identityFile != "":
		data, err := os.ReadFile(identityFile)
		if err != nil {
			return nil, fmt.Errorf("reading identity: %w", err)
		}
		id, err := dmxport.ParseIdentity(data)
		if err != nil {
			return nil, err
		}
		return dmxport.NewPort(log, id)
	case deviceFlag != "":
		return dmxport.NewEnttecPort(log, deviceFlag), nil
	case addressFlag != "":
		return dmxport.NewArtNetPort(log, dmxport.Identity{
			Kind:     dmxport.KindArtNet,
			Address:  addressFlag,
			Universe: universeFlag,
		}), nil
	default:
		return dmxport.NewOfflinePort(), nil
	}
}
