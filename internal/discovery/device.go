package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents an Improv endpoint discovered on the network
type Device struct {
	// Instance is the mDNS service instance name (e.g., "kitchen-sensor")
	Instance string

	// Hostname is the mDNS hostname (e.g., "kitchen-sensor.local.")
	Hostname string

	// IP is the advertised address, IPv4 preferred
	IP string

	// Port is the WebSocket port
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "improv=1", "path=/improv", "fw=improv-go"
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Improv device %s (%s) at %s", d.Instance, d.Hostname, net.JoinHostPort(d.IP, strconv.Itoa(d.Port)))
}

// URL returns the WebSocket URL of the device's Improv endpoint
func (d *Device) URL() string {
	scheme := "ws"
	if d.GetMetadata(TXTSecure) == "1" {
		scheme = "wss"
	}
	path := d.GetMetadata(TXTPath)
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(d.IP, strconv.Itoa(d.Port)), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
