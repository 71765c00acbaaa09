package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sora-console",
	Short: "Management console backend for a Sora SFU",
	Long: `sora-console sits between the dashboard and a Sora SFU: it proxies
the Sora signaling API, ingests Sora webhooks (auth decisions, session and
connection lifecycle) and fans the resulting events out to connected
browsers over server-sent events.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}
