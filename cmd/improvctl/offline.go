package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/improv/internal/client"
	"github.com/muurk/improv/internal/discovery"
	"github.com/muurk/improv/internal/protocol"
	"github.com/muurk/improv/internal/transport"
	"github.com/muurk/improv/internal/ui"
	"github.com/muurk/improv/internal/urls"
)

var (
	decodeRPC      bool
	decodeChecksum bool

	errMalformedRPC = errors.New("malformed RPC payload")
	errRPCChecksum  = errors.New("RPC payload checksum mismatch")
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode an Improv frame given as hex",
	Long: `Decode a single Improv frame.

With --rpc the input is a bare RPC payload (command, length, data) as
written to the BLE RPC characteristic. Add --checksum when the payload
ends with a checksum byte.

Spaces, colons and a 0x prefix in the hex input are ignored.`,
	Example: `  improvctl decode 494d50524f5601010102e2
  improvctl decode "49 4d 50 52 4f 56 01 03 02 02 00 e5"
  improvctl decode --rpc --checksum 020002`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := ui.NewPrinter(cmd.OutOrStdout())

		raw, err := parseHex(strings.Join(args, ""))
		if err != nil {
			printer.PrintError("Invalid input", err, nil)
			return err
		}
		if decodeRPC || decodeChecksum {
			details, err := describeRPC(raw, decodeChecksum)
			if err != nil {
				printer.PrintError("Invalid RPC payload", err, []string{
					"Pass command, length and data bytes without the IMPROV header",
				})
				return err
			}
			printer.PrintSuccess("RPC", details)
			return nil
		}

		details, err := describeFrame(raw)
		if err != nil {
			printer.PrintError("Invalid frame", err, []string{
				"Pass exactly one frame, starting with 49 4d 50 52 4f 56 (IMPROV)",
				"Frame layout: " + urls.SerialProtocol,
			})
			return err
		}
		printer.PrintSuccess("Frame", details)
		printer.PrintDump("Raw bytes", strings.TrimRight(hex.Dump(raw), "\n"))
		return nil
	},
}

// parseHex decodes hex with common separators removed
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return raw, nil
}

// describeFrame validates raw as one frame and lists its decoded fields
func describeFrame(raw []byte) ([]ui.Param, error) {
	frame, err := protocol.ParseFrame(raw)
	if err != nil {
		return nil, err
	}

	details := []ui.Param{
		{Key: "Version", Value: fmt.Sprintf("0x%02x", frame.Version)},
		{Key: "Type", Value: frame.Type.String()},
		{Key: "Length", Value: strconv.Itoa(len(frame.Payload))},
		{Key: "Checksum", Value: fmt.Sprintf("0x%02x (ok)", frame.Checksum)},
	}

	switch frame.Type {
	case protocol.PacketTypeCurrentState:
		if len(frame.Payload) > 0 {
			details = append(details, ui.Param{Key: "State", Value: protocol.State(frame.Payload[0]).String()})
		}
	case protocol.PacketTypeErrorState:
		if len(frame.Payload) > 0 {
			details = append(details, ui.Param{Key: "Error", Value: protocol.ErrorCode(frame.Payload[0]).String()})
		}
	case protocol.PacketTypeRPC:
		details = append(details, commandDetails(protocol.ParsePayload(frame.Payload))...)
	case protocol.PacketTypeRPCResponse:
		code, strs, err := protocol.ParseRPCResult(frame.Payload)
		if err != nil {
			return nil, err
		}
		details = append(details, ui.Param{Key: "Command", Value: code.String()})
		if len(strs) == 0 {
			details = append(details, ui.Param{Key: "Result", Value: "(end of list)"})
		}
		for i, s := range strs {
			details = append(details, ui.Param{Key: fmt.Sprintf("Result %d", i+1), Value: s})
		}
	}
	return details, nil
}

// commandDetails lists a decoded RPC command with the password masked
func commandDetails(cmd protocol.Command) []ui.Param {
	details := []ui.Param{{Key: "Command", Value: cmd.Code.String()}}
	if cmd.Code == protocol.CommandWifiSettings {
		details = append(details,
			ui.Param{Key: "SSID", Value: cmd.SSID},
			ui.Param{Key: "Password", Value: strings.Repeat("*", len(cmd.Password))},
		)
	}
	return details
}

// describeRPC decodes a bare RPC payload. The decoder reports malformed
// input as the Unknown and BadChecksum command codes, which are errors here.
func describeRPC(raw []byte, withChecksum bool) ([]ui.Param, error) {
	cmd := protocol.ParseRPC(raw, withChecksum)
	switch cmd.Code {
	case protocol.CommandUnknown:
		return nil, errMalformedRPC
	case protocol.CommandBadChecksum:
		return nil, errRPCChecksum
	}
	return commandDetails(cmd), nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <capture.jsonl>",
	Short: "Summarise a frame capture written by improvd",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := ui.NewPrinter(cmd.OutOrStdout())

		records, err := transport.ReadCapture(args[0])
		if err != nil {
			printer.PrintError("Cannot read capture", err, nil)
			return err
		}
		if len(records) == 0 {
			printer.PrintWarning("Empty capture", []ui.Param{{Key: "File", Value: args[0]}})
			return nil
		}

		printer.PrintSuccess("Capture summary", summarizeCapture(records))
		for _, r := range records {
			printer.Println(describeRecord(r))
		}
		return nil
	},
}

// summarizeCapture counts sessions and packet types per direction
func summarizeCapture(records []transport.Record) []ui.Param {
	sessions := make(map[string]struct{})
	counts := make(map[string]int)
	rejected := 0
	for _, r := range records {
		sessions[r.Session] = struct{}{}
		counts[r.Direction+" "+r.PacketType]++
		if r.Error != "" {
			rejected++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	first, last := records[0].Timestamp, records[len(records)-1].Timestamp
	details := []ui.Param{
		{Key: "Frames", Value: strconv.Itoa(len(records))},
		{Key: "Sessions", Value: strconv.Itoa(len(sessions))},
		{Key: "Span", Value: last.Sub(first).Round(time.Millisecond).String()},
		{Key: "Rejected", Value: strconv.Itoa(rejected)},
	}
	for _, k := range keys {
		details = append(details, ui.Param{Key: k, Value: strconv.Itoa(counts[k])})
	}
	return details
}

// describeRecord renders one capture line as "seq direction type detail"
func describeRecord(r transport.Record) string {
	line := fmt.Sprintf("%4d %s %-14s %-12s", r.Seq, r.Timestamp.Format("15:04:05.000"), r.Direction, r.PacketType)
	raw, err := r.Raw()
	if err != nil {
		return line + " (bad hex)"
	}
	details, err := describeFrame(raw)
	if err != nil {
		return line + " " + err.Error()
	}
	var parts []string
	for _, d := range details[4:] {
		parts = append(parts, d.Key+"="+d.Value)
	}
	return line + " " + strings.Join(parts, " ")
}

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find improvd endpoints advertised over mDNS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := ui.NewPrinter(cmd.OutOrStdout())
		scanner := discovery.NewScanner()
		scanner.Timeout = discoverTimeout

		var devices []*discovery.Device
		err := ui.Wait(cmd.Context(), cmd.OutOrStdout(), "Browsing "+discovery.ServiceType, func(ctx context.Context, status func(string)) error {
			var err error
			devices, err = scanner.ScanForDevices(ctx)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			printer.PrintError("Discovery failed", err, []string{
				"mDNS needs multicast on the local network",
				"Start improvd with --mdns",
			})
			return err
		}

		if len(devices) == 0 {
			printer.PrintWarning("No devices found", []ui.Param{{Key: "Service", Value: discovery.ServiceType}})
			return nil
		}
		for _, d := range devices {
			printer.PrintSuccess(d.Instance, []ui.Param{
				{Key: "URL", Value: d.URL()},
				{Key: "Firmware", Value: d.GetMetadata(discovery.TXTFirmware)},
				{Key: "Version", Value: d.GetMetadata(discovery.TXTVersion)},
				{Key: "Chip", Value: d.GetMetadata(discovery.TXTChip)},
			})
		}
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := ui.NewPrinter(cmd.OutOrStdout())
		ports, err := client.ListPorts()
		if err != nil {
			printer.PrintError("Cannot list ports", err, nil)
			return err
		}
		if len(ports) == 0 {
			printer.PrintWarning("No serial ports found", nil)
			return nil
		}
		for _, p := range ports {
			printer.Println(p)
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeRPC, "rpc", false, "Input is a bare RPC payload instead of a full frame")
	decodeCmd.Flags().BoolVar(&decodeChecksum, "checksum", false, "RPC payload ends with a checksum byte (implies --rpc)")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "wait", discovery.DefaultScanTimeout, "How long to browse for devices")
}
