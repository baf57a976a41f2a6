package protocol

import "fmt"

// PacketType identifies the kind of packet carried by a frame
type PacketType byte

// Packet types
const (
	PacketTypeCurrentState PacketType = 0x01 // Device to client
	PacketTypeErrorState   PacketType = 0x02 // Device to client
	PacketTypeRPC          PacketType = 0x03 // Client to device
	PacketTypeRPCResponse  PacketType = 0x04 // Device to client
)

// String returns a human-readable packet type name
func (t PacketType) String() string {
	switch t {
	case PacketTypeCurrentState:
		return "CurrentState"
	case PacketTypeErrorState:
		return "ErrorState"
	case PacketTypeRPC:
		return "RPC"
	case PacketTypeRPCResponse:
		return "RPCResponse"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// State is the provisioning state reported in CurrentState packets
type State byte

// Provisioning states
const (
	StateReadyAuthorized State = 0x02 // Ready to accept credentials
	StateProvisioning    State = 0x03 // Credentials received, attempting to connect
	StateProvisioned     State = 0x04 // Connection successful
)

func (s State) String() string {
	switch s {
	case StateReadyAuthorized:
		return "ReadyAuthorized"
	case StateProvisioning:
		return "Provisioning"
	case StateProvisioned:
		return "Provisioned"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(s))
	}
}

// ErrorCode is the value reported in ErrorState packets
type ErrorCode byte

// Error codes
const (
	ErrorNone            ErrorCode = 0x00
	ErrorInvalidRPC      ErrorCode = 0x01 // RPC packet was malformed/invalid
	ErrorUnknownRPC      ErrorCode = 0x02 // The command sent is unknown
	ErrorUnableToConnect ErrorCode = 0x03 // Credentials received but the connection attempt failed
	ErrorNotAuthorized   ErrorCode = 0x04
	ErrorUnknown         ErrorCode = 0xFF
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "None"
	case ErrorInvalidRPC:
		return "InvalidRPC"
	case ErrorUnknownRPC:
		return "UnknownRPC"
	case ErrorUnableToConnect:
		return "UnableToConnect"
	case ErrorNotAuthorized:
		return "NotAuthorized"
	case ErrorUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(e))
	}
}

// CommandCode identifies an RPC command
type CommandCode byte

// RPC command codes
const (
	CommandUnknown         CommandCode = 0x00
	CommandWifiSettings    CommandCode = 0x01
	CommandGetCurrentState CommandCode = 0x02
	CommandGetDeviceInfo   CommandCode = 0x03
	CommandGetWifiNetworks CommandCode = 0x04
	CommandBadChecksum     CommandCode = 0xFF
)

func (c CommandCode) String() string {
	switch c {
	case CommandUnknown:
		return "Unknown"
	case CommandWifiSettings:
		return "WifiSettings"
	case CommandGetCurrentState:
		return "GetCurrentState"
	case CommandGetDeviceInfo:
		return "GetDeviceInfo"
	case CommandGetWifiNetworks:
		return "GetWifiNetworks"
	case CommandBadChecksum:
		return "BadChecksum"
	default:
		return fmt.Sprintf("Unrecognized(0x%02x)", byte(c))
	}
}

// IsKnown reports whether the code is one of the defined RPC commands
func (c CommandCode) IsKnown() bool {
	switch c {
	case CommandUnknown,
		CommandWifiSettings,
		CommandGetCurrentState,
		CommandGetDeviceInfo,
		CommandGetWifiNetworks,
		CommandBadChecksum:
		return true
	default:
		return false
	}
}

// Command is a decoded RPC command.
// SSID and Password are only populated for CommandWifiSettings.
type Command struct {
	Code     CommandCode
	SSID     string
	Password string
}

func (c Command) String() string {
	if c.Code == CommandWifiSettings {
		return fmt.Sprintf("Command{%s, ssid=%q, password_len=%d}", c.Code, c.SSID, len(c.Password))
	}
	return fmt.Sprintf("Command{%s}", c.Code)
}

// DeviceInfo is the identity reported in response to GetDeviceInfo
type DeviceInfo struct {
	FirmwareName    string `yaml:"firmware_name"`
	FirmwareVersion string `yaml:"firmware_version"`
	ChipVariant     string `yaml:"chip_variant"`
	DeviceName      string `yaml:"device_name"`
}

// Strings returns the four device info strings in wire order
func (d DeviceInfo) Strings() []string {
	return []string{d.FirmwareName, d.FirmwareVersion, d.ChipVariant, d.DeviceName}
}

// AccessPoint is one entry of a Wi-Fi network scan
type AccessPoint struct {
	SSID         string
	RSSI         int
	AuthRequired bool
}

// Strings returns the three RPC result strings for the access point:
// SSID, signal strength and "YES"/"NO" for auth required.
func (ap AccessPoint) Strings() []string {
	auth := "NO"
	if ap.AuthRequired {
		auth = "YES"
	}
	return []string{ap.SSID, fmt.Sprintf("%02d", ap.RSSI), auth}
}
