package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configPath string
		endpoint   string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:   "scanctl",
		Short: "Control and observe a scanner bridge service",
		Long: `scanctl talks to a local scanner bridge service over its WebSocket
endpoint: stream barcode and RFID events, trigger reads, and inspect
device status and capabilities.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	flags.StringVarP(&endpoint, "endpoint", "e", "", "Bridge WebSocket URL (default ws://localhost:8585)")
	flags.StringVarP(&logLevel, "log-level", "l", "", "Log level: debug, info, warn, error (default warn)")

	resolve := func(cmd *cobra.Command) (settings, error) {
		return resolveSettings(configPath, endpoint, logLevel, cmd)
	}

	rootCmd.AddCommand(
		watchCmd(resolve),
		triggerCmd(resolve),
		statusCmd(resolve),
		capabilitiesCmd(resolve),
		rfidCmd(resolve),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scanctl: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scanctl %s (%s)\n", version, commit)
		},
	}
}
