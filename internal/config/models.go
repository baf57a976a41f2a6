package config

import (
	"time"

	"github.com/muurk/improv/internal/network"
	"github.com/muurk/improv/internal/protocol"
)

// CurrentVersion is the only config file version understood by Load
const CurrentVersion = 1

// Config represents the entire configuration file shared by improvd and
// improvctl.
type Config struct {
	Version   int                 `yaml:"version"`
	Serial    SerialConfig        `yaml:"serial"`
	WebSocket WebSocketConfig     `yaml:"websocket"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Device    protocol.DeviceInfo `yaml:"device"`
	MDNS      MDNSConfig          `yaml:"mdns"`
	Network   NetworkConfig       `yaml:"network"`
	Capture   CaptureConfig       `yaml:"capture"`
}

// SerialConfig describes the UART the device side listens on, and the
// default port improvctl opens.
type SerialConfig struct {
	Port          string `yaml:"port,omitempty"` // Empty disables the serial transport
	BaudRate      int    `yaml:"baud"`
	IdleTimeoutMs int    `yaml:"idle_timeout_ms"` // Partial frames older than this are dropped
}

// WebSocketConfig describes the WebSocket transport
type WebSocketConfig struct {
	Listen string `yaml:"listen,omitempty"` // Empty disables the WebSocket transport
	Path   string `yaml:"path"`
	Cert   string `yaml:"cert,omitempty"`
	Key    string `yaml:"key,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint, served next to the
// WebSocket endpoint or on its own listener.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"`
	Path   string `yaml:"path"`
}

// MDNSConfig controls service advertisement
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"` // Defaults to the device name
	Service  string `yaml:"service"`
	Port     int    `yaml:"port"`
}

// NetworkConfig configures the simulated Wi-Fi provider
type NetworkConfig struct {
	Networks       []network.SimulatedNetwork `yaml:"networks"`
	ConnectDelayMs int                        `yaml:"connect_delay_ms"`
	Address        string                     `yaml:"address"` // Reported in the device URL
}

// CaptureConfig controls frame capture to disk
type CaptureConfig struct {
	Dir string `yaml:"dir,omitempty"` // Empty disables capture
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Serial: SerialConfig{
			BaudRate:      115200,
			IdleTimeoutMs: 50,
		},
		WebSocket: WebSocketConfig{
			Path: "/improv",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Device: protocol.DeviceInfo{
			FirmwareName:    "improv-go",
			FirmwareVersion: "dev",
			ChipVariant:     "simulator",
			DeviceName:      "improv",
		},
		MDNS: MDNSConfig{
			Enabled: false,
			Service: "_improv._tcp",
			Port:    8080,
		},
		Network: NetworkConfig{
			Networks: []network.SimulatedNetwork{
				{SSID: "HomeNetwork", RSSI: -48, Password: "correct-horse"},
				{SSID: "Guest", RSSI: -71},
			},
			ConnectDelayMs: 1500,
			Address:        "192.168.4.1",
		},
	}
}

// IdleTimeout returns the serial idle timeout as a duration
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Serial.IdleTimeoutMs) * time.Millisecond
}

// Simulator returns the simulated network provider settings
func (c *Config) Simulator() network.SimulatorConfig {
	return network.SimulatorConfig{
		Networks:     c.Network.Networks,
		ConnectDelay: time.Duration(c.Network.ConnectDelayMs) * time.Millisecond,
		Address:      c.Network.Address,
	}
}
