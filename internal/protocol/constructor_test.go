package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestBuildCurrentState(t *testing.T) {
	tests := []struct {
		state State
		want  []byte
	}{
		{StateReadyAuthorized, rawFrame(PacketTypeCurrentState, []byte{0x02})},
		{StateProvisioning, rawFrame(PacketTypeCurrentState, []byte{0x03})},
		{StateProvisioned, rawFrame(PacketTypeCurrentState, []byte{0x04})},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			got := BuildCurrentState(tt.state)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("BuildCurrentState() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestBuildErrorState(t *testing.T) {
	got := BuildErrorState(ErrorInvalidRPC)
	want := rawFrame(PacketTypeErrorState, []byte{0x01})
	if !bytes.Equal(got, want) {
		t.Errorf("BuildErrorState() = % x, want % x", got, want)
	}

	// Building twice yields identical bytes
	if !bytes.Equal(BuildErrorState(ErrorInvalidRPC), got) {
		t.Error("BuildErrorState() is not deterministic")
	}
}

func TestBuildRPCResponse(t *testing.T) {
	tests := []struct {
		name        string
		command     CommandCode
		results     []string
		wantPayload []byte
		wantErr     error
	}{
		{
			name:    "network entry",
			command: CommandGetWifiNetworks,
			results: []string{"MyNet", "-60", "YES"},
			wantPayload: []byte{0x04, 0x0E,
				0x05, 'M', 'y', 'N', 'e', 't',
				0x03, '-', '6', '0',
				0x03, 'Y', 'E', 'S'},
		},
		{
			name:        "no strings",
			command:     CommandGetWifiNetworks,
			results:     nil,
			wantPayload: []byte{0x04, 0x00},
		},
		{
			name:        "leading empty string terminates",
			command:     CommandWifiSettings,
			results:     []string{"", "ignored"},
			wantPayload: []byte{0x01, 0x00},
		},
		{
			name:        "stops at first empty string",
			command:     CommandGetDeviceInfo,
			results:     []string{"a", "", "b"},
			wantPayload: []byte{0x03, 0x02, 0x01, 'a'},
		},
		{
			name:        "largest payload",
			command:     CommandWifiSettings,
			results:     []string{strings.Repeat("u", 252)},
			wantPayload: append([]byte{0x01, 0xFD, 0xFC}, strings.Repeat("u", 252)...),
		},
		{
			name:    "payload overflow",
			command: CommandWifiSettings,
			results: []string{strings.Repeat("u", 253)},
			wantErr: ErrPayloadTooLarge,
		},
		{
			name:    "many strings overflow",
			command: CommandGetDeviceInfo,
			results: []string{strings.Repeat("a", 100), strings.Repeat("b", 100), strings.Repeat("c", 100)},
			wantErr: ErrPayloadTooLarge,
		},
		{
			name:    "string too long",
			command: CommandGetDeviceInfo,
			results: []string{strings.Repeat("a", 256)},
			wantErr: ErrStringTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet, err := BuildRPCResponse(tt.command, tt.results)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BuildRPCResponse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildRPCResponse() unexpected error = %v", err)
			}

			want := rawFrame(PacketTypeRPCResponse, tt.wantPayload)
			if !bytes.Equal(packet, want) {
				t.Errorf("BuildRPCResponse() =\n% x\nwant\n% x", packet, want)
			}
		})
	}
}

func TestBuildRPCResponse_NetworkEntryFrameSize(t *testing.T) {
	packet, err := BuildRPCResponse(CommandGetWifiNetworks, []string{"MyNet", "-60", "YES"})
	if err != nil {
		t.Fatalf("BuildRPCResponse() error = %v", err)
	}
	if len(packet) != 26 {
		t.Errorf("frame length = %d, want 26", len(packet))
	}
	if packet[8] != 16 {
		t.Errorf("payload length = %d, want 16", packet[8])
	}
}

func TestBuildDeviceInfo(t *testing.T) {
	info := DeviceInfo{
		FirmwareName:    "improv-go",
		FirmwareVersion: "1.0.0",
		ChipVariant:     "sim",
		DeviceName:      "kitchen",
	}

	packet, err := BuildDeviceInfo(info)
	if err != nil {
		t.Fatalf("BuildDeviceInfo() error = %v", err)
	}
	frame, err := ParseFrame(packet)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}

	code, strs, err := ParseRPCResult(frame.Payload)
	if err != nil {
		t.Fatalf("ParseRPCResult() error = %v", err)
	}
	if code != CommandGetDeviceInfo {
		t.Errorf("code = %s, want GetDeviceInfo", code)
	}
	if !reflect.DeepEqual(strs, info.Strings()) {
		t.Errorf("strings = %q, want %q", strs, info.Strings())
	}
}

func TestBuildDeviceInfo_EmptyFieldTruncates(t *testing.T) {
	packet, err := BuildDeviceInfo(DeviceInfo{FirmwareName: "fw", ChipVariant: "chip", DeviceName: "dev"})
	if err != nil {
		t.Fatalf("BuildDeviceInfo() error = %v", err)
	}
	want := rawFrame(PacketTypeRPCResponse, []byte{0x03, 0x03, 0x02, 'f', 'w'})
	if !bytes.Equal(packet, want) {
		t.Errorf("BuildDeviceInfo() = % x, want % x", packet, want)
	}
}

func TestAccessPoint_Strings(t *testing.T) {
	tests := []struct {
		ap   AccessPoint
		want []string
	}{
		{AccessPoint{SSID: "home", RSSI: -60, AuthRequired: true}, []string{"home", "-60", "YES"}},
		{AccessPoint{SSID: "cafe", RSSI: -5, AuthRequired: false}, []string{"cafe", "-5", "NO"}},
		{AccessPoint{SSID: "near", RSSI: 7}, []string{"near", "07", "NO"}},
	}

	for _, tt := range tests {
		t.Run(tt.ap.SSID, func(t *testing.T) {
			if got := tt.ap.Strings(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Strings() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildRPCCommand(t *testing.T) {
	packet, err := BuildRPCCommand(CommandGetCurrentState, nil)
	if err != nil {
		t.Fatalf("BuildRPCCommand() error = %v", err)
	}
	want := rawFrame(PacketTypeRPC, []byte{0x02, 0x00})
	if !bytes.Equal(packet, want) {
		t.Errorf("BuildRPCCommand() = % x, want % x", packet, want)
	}
	if packet[len(packet)-1] != 0xE5 {
		t.Errorf("checksum = 0x%02x, want 0xe5", packet[len(packet)-1])
	}

	if _, err := BuildRPCCommand(CommandWifiSettings, make([]byte, 254)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized data: error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestBuildWifiSettings(t *testing.T) {
	packet, err := BuildWifiSettings("MyWirelessAP", "mysecurepassword")
	if err != nil {
		t.Fatalf("BuildWifiSettings() error = %v", err)
	}
	want := rawFrame(PacketTypeRPC, wifiSettingsPayload())
	if !bytes.Equal(packet, want) {
		t.Errorf("BuildWifiSettings() = % x, want % x", packet, want)
	}

	if _, err := BuildWifiSettings(strings.Repeat("s", 256), ""); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("long ssid: error = %v, want ErrStringTooLong", err)
	}
}
