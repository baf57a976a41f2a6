// Improvd serves the Improv Wi-Fi provisioning protocol.
//
// It answers Improv frames arriving on a serial port and on a WebSocket
// endpoint, backed by a simulated Wi-Fi provider configured in YAML. It
// can advertise the endpoint over mDNS and exposes Prometheus metrics.
//
// Usage:
//
//	improvd serve [flags]
//
// See 'improvd serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/improv/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "improvd",
	Short: "Improv Wi-Fi provisioning daemon",
	Long: `A daemon speaking the Improv Wi-Fi provisioning protocol.

Clients send Wi-Fi credentials as Improv frames over a serial port or a
WebSocket connection. The daemon answers state, device info and network
scan requests and reports the outcome of each connection attempt.

For the host side of the protocol, use the separate 'improvctl' utility.`,
	Version: version.Version,
}

var configPath string

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/improv/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Banner("improvd"))
	},
}
