// Package cmd provides the CLI commands for Stream Gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Stream-Gate/Streamgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stream-gate",
	Short: "Stream Gate - WebSocket relay for bidirectional streaming APIs",
	Long: `Stream Gate is a WebSocket relay that pairs client connections with a
fixed upstream streaming endpoint.

Clients connect over WebSocket and send a single JSON handshake message
carrying a bearer token. The relay dials the upstream with that token in
the Authorization header, then forwards JSON frames in both directions
until either side closes.

Quick start:
  1. Create a config file: stream-gate.yaml
  2. Run: stream-gate start

Configuration:
  Config is loaded from stream-gate.yaml in the current directory,
  $HOME/.stream-gate/, or /etc/stream-gate/.

  Environment variables can override config values with the STREAM_GATE_ prefix.
  Example: STREAM_GATE_SERVER_PORT=9090

Commands:
  start       Start the relay server
  stop        Stop the running server
  hash-key    Generate an argon2id hash for the admin API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./stream-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
