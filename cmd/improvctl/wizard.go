package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/improv/internal/client"
	"github.com/muurk/improv/internal/discovery"
	"github.com/muurk/improv/internal/ui"
	"github.com/muurk/improv/internal/wizard"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive provisioning wizard",
	Long: `Walk through provisioning interactively.

Without --port or --url the wizard browses mDNS for improvd endpoints and
lets you pick one or type a URL. It then lists the networks the device
can see, asks for the password and follows the connection attempt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := wizard.Config{
			Connect: dialTarget,
			Browse: func(ctx context.Context) ([]*discovery.Device, error) {
				return discovery.NewScanner().ScanForDevices(ctx)
			},
			Timeout: timeoutFlag,
		}
		if urlFlag != "" || portFlag != "" {
			t, err := resolveTarget()
			if err != nil {
				return err
			}
			cfg.Target = t.URL
			if cfg.Target == "" {
				cfg.Target = t.Port
				baud := t.Baud
				cfg.Connect = func(ctx context.Context, target string) (wizard.Device, error) {
					return asDevice(client.OpenSerial(target, baud))
				}
			}
		}

		res, err := wizard.Run(cmd.Context(), cfg)
		printer := ui.NewPrinter(cmd.OutOrStdout())
		if err != nil {
			printer.PrintError("Wizard failed", err, troubleshootConnect)
			return err
		}
		if res.SSID != "" {
			details := []ui.Param{{Key: "Device", Value: res.Target}, {Key: "SSID", Value: res.SSID}}
			if res.URL != "" {
				details = append(details, ui.Param{Key: "URL", Value: res.URL})
			}
			printer.PrintSuccess("Provisioned", details)
		}
		return nil
	},
}

// dialTarget connects to a WebSocket URL or, failing that, a serial port
// at the default baud rate
func dialTarget(ctx context.Context, target string) (wizard.Device, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return asDevice(client.DialWebSocket(ctx, target))
	}
	return asDevice(client.OpenSerial(target, 115200))
}

// asDevice keeps a failed dial from becoming a non-nil interface
func asDevice(c *client.Client, err error) (wizard.Device, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	rootCmd.AddCommand(wizardCmd)
}
