// Improvctl is the host side of the Improv Wi-Fi provisioning protocol.
//
// It talks to an Improv device over a serial port or to an improvd
// WebSocket endpoint, and decodes frames and captures offline.
//
// Usage:
//
//	improvctl <command> [flags]
//
// See 'improvctl --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/improv/internal/client"
	"github.com/muurk/improv/internal/config"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Global connection flags
var (
	portFlag    string
	baudFlag    int
	urlFlag     string
	configFlag  string
	timeoutFlag time.Duration
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "improvctl",
	Short: "Provision Wi-Fi on Improv devices",
	Long: `Host-side tool for the Improv Wi-Fi provisioning protocol.

Device commands (state, info, scan, provision) connect either to a serial
port (--port) or to an improvd WebSocket endpoint (--url). Without either,
the serial port from the config file is used.

Offline commands (decode, analyze) work on hex frames and capture files,
discover finds improvd endpoints advertised over mDNS, and wizard walks
through provisioning interactively.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return logging.InitializeFromEnv()
		}
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&portFlag, "port", "p", "", "Serial port of the device (e.g. /dev/ttyUSB0)")
	flags.IntVarP(&baudFlag, "baud", "b", 0, "Serial baud rate (default from config, 115200)")
	flags.StringVarP(&urlFlag, "url", "u", "", "improvd WebSocket URL (e.g. ws://192.168.4.1:8080/improv)")
	flags.StringVar(&configFlag, "config", "", "Path to config file")
	flags.DurationVarP(&timeoutFlag, "timeout", "t", 10*time.Second, "Timeout for each device request")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); logs go to stderr")

	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(versionCmd)
}

// target describes where device commands connect
type target struct {
	URL  string
	Port string
	Baud int
}

// String names the target for headers and errors
func (t target) String() string {
	if t.URL != "" {
		return t.URL
	}
	return fmt.Sprintf("%s @ %d", t.Port, t.Baud)
}

// resolveTarget combines flags with the config file. A URL wins over a
// serial port.
func resolveTarget() (target, error) {
	if urlFlag != "" {
		return target{URL: urlFlag}, nil
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		return target{}, err
	}
	t := target{Port: cfg.Serial.Port, Baud: cfg.Serial.BaudRate}
	if portFlag != "" {
		t.Port = portFlag
	}
	if baudFlag != 0 {
		t.Baud = baudFlag
	}
	if t.Port == "" {
		return target{}, fmt.Errorf("no device given: use --port or --url (see 'improvctl ports' and 'improvctl discover')")
	}
	if t.Baud == 0 {
		t.Baud = 115200
	}
	return t, nil
}

// connect opens a client for the resolved target
func connect(ctx context.Context, t target) (*client.Client, error) {
	if t.URL != "" {
		return client.DialWebSocket(ctx, t.URL)
	}
	return client.OpenSerial(t.Port, t.Baud)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Banner("improvctl"))
	},
}
