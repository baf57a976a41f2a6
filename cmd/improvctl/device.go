package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/improv/internal/client"
	"github.com/muurk/improv/internal/protocol"
	"github.com/muurk/improv/internal/ui"
	"github.com/muurk/improv/internal/urls"
)

var troubleshootConnect = []string{
	"Check the device is powered and the port or URL is correct",
	"List serial ports with 'improvctl ports'",
	"Find improvd endpoints with 'improvctl discover'",
	"Run with --log-level debug to see raw frames",
	"Protocol reference: " + urls.SerialProtocol,
}

// withClient resolves the target, connects and runs fn with a per-request
// timeout context
func withClient(cmd *cobra.Command, fn func(ctx context.Context, t target, c *client.Client) error) error {
	printer := ui.NewPrinter(cmd.OutOrStdout())

	t, err := resolveTarget()
	if err != nil {
		printer.PrintError("No device", err, troubleshootConnect)
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	c, err := connect(ctx, t)
	if err != nil {
		printer.PrintError("Connection failed", err, troubleshootConnect)
		return err
	}
	defer func() { _ = c.Close() }()

	if err := fn(ctx, t, c); err != nil {
		printer.PrintError(cmd.Name()+" failed", err, troubleshootConnect)
		return err
	}
	return nil
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the provisioning state of a device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, t target, c *client.Client) error {
			report, err := c.State(ctx)
			if err != nil {
				return err
			}
			details := []ui.Param{
				{Key: "Device", Value: t.String()},
				{Key: "State", Value: report.State.String()},
			}
			if report.URL != "" {
				details = append(details, ui.Param{Key: "URL", Value: report.URL})
			}
			ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device state", details)
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show firmware and device information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, t target, c *client.Client) error {
			info, err := c.Info(ctx)
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device information", deviceInfoParams(info))
			return nil
		})
	},
}

func deviceInfoParams(info protocol.DeviceInfo) []ui.Param {
	return []ui.Param{
		{Key: "Firmware", Value: info.FirmwareName},
		{Key: "Version", Value: info.FirmwareVersion},
		{Key: "Chip", Value: info.ChipVariant},
		{Key: "Name", Value: info.DeviceName},
	}
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List Wi-Fi networks visible to the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, t target, c *client.Client) error {
			var aps []protocol.AccessPoint
			err := ui.Wait(ctx, cmd.OutOrStdout(), "Scanning for networks", func(ctx context.Context, status func(string)) error {
				var err error
				aps, err = c.Scan(ctx)
				return err
			})
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).PrintNetworks(aps)
			return nil
		})
	},
}

// Provision command flags
var (
	ssidFlag     string
	passwordFlag string
	openFlag     bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision [ssid]",
	Short: "Send Wi-Fi credentials to a device",
	Long: `Send Wi-Fi credentials to a device and wait for the outcome.

The password is prompted for when not given with --password, unless
--open is set for networks without authentication. The command waits up
to --timeout for the device to report Provisioned, then prints the URL
the device returns.`,
	Example: `  improvctl provision HomeNetwork --port /dev/ttyUSB0
  improvctl provision --ssid Guest --open --url ws://192.168.4.1:8080/improv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&ssidFlag, "ssid", "", "Network name (alternative to the positional argument)")
	provisionCmd.Flags().StringVar(&passwordFlag, "password", "", "Network password (prompted if omitted)")
	provisionCmd.Flags().BoolVar(&openFlag, "open", false, "Network has no password")
}

// provisionSteps are the steps shown by the provision command
var provisionSteps = []string{
	"Connect to device",
	"Check device state",
	"Send credentials",
	"Wait for connection",
}

func runProvision(cmd *cobra.Command, args []string) error {
	ssid := ssidFlag
	if len(args) == 1 {
		ssid = args[0]
	}
	if ssid == "" {
		return errors.New("an SSID is required")
	}

	password := passwordFlag
	if password == "" && !openFlag {
		var err error
		password, err = ui.PromptPassword(os.Stdin, cmd.ErrOrStderr(), fmt.Sprintf("Password for %q: ", ssid))
		if err != nil && !errors.Is(err, ui.ErrEmptyInput) {
			return err
		}
	}

	t, err := resolveTarget()
	if err != nil {
		return err
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Provision",
		Command: "improvctl provision",
		Params: []ui.Param{
			{Key: "Device", Value: t.String()},
			{Key: "SSID", Value: ssid},
			{Key: "Password", Value: strconv.Itoa(len(password)) + " characters"},
		},
		StepNames: provisionSteps,
		Troubleshooting: []string{
			"Check the SSID and password; both are case sensitive",
			"Move the device closer to the access point",
			"Run 'improvctl scan' to confirm the device can see the network",
		},
		Output: cmd.OutOrStdout(),
	})

	_, err = runner.Run(func(onStep ui.StepCallback) ([]ui.Param, error) {
		return provision(cmd.Context(), cmd, t, ssid, password, onStep)
	})
	return err
}

func provision(parent context.Context, cmd *cobra.Command, t target, ssid, password string, onStep ui.StepCallback) ([]ui.Param, error) {
	ctx, cancel := context.WithTimeout(parent, timeoutFlag)
	defer cancel()

	onStep(1, ui.StepRunning, "")
	c, err := connect(ctx, t)
	if err != nil {
		onStep(1, ui.StepFailed, err.Error())
		return nil, err
	}
	defer func() { _ = c.Close() }()
	onStep(1, ui.StepComplete, t.String())

	onStep(2, ui.StepRunning, "")
	report, err := c.State(ctx)
	if err != nil {
		onStep(2, ui.StepFailed, err.Error())
		return nil, err
	}
	onStep(2, ui.StepComplete, report.State.String())

	onStep(3, ui.StepRunning, "")
	var url string
	err = ui.Wait(ctx, cmd.OutOrStdout(), "Waiting for "+ssid, func(ctx context.Context, status func(string)) error {
		sent := false
		var err error
		url, err = c.Provision(ctx, ssid, password, func(s protocol.State) {
			if !sent {
				sent = true
				onStep(3, ui.StepComplete, "")
				onStep(4, ui.StepRunning, "")
			}
			status(s.String())
		})
		if !sent {
			if err != nil && !isDeviceError(err) {
				onStep(3, ui.StepFailed, err.Error())
				return err
			}
			onStep(3, ui.StepComplete, "")
		}
		return err
	})
	if err != nil {
		onStep(4, ui.StepFailed, err.Error())
		return nil, err
	}
	onStep(4, ui.StepComplete, protocol.StateProvisioned.String())

	details := []ui.Param{{Key: "SSID", Value: ssid}}
	if url != "" {
		details = append(details, ui.Param{Key: "URL", Value: url})
	}
	return details, nil
}

func isDeviceError(err error) bool {
	var de *client.DeviceError
	return errors.As(err, &de)
}
