package network

import (
	"context"
	"fmt"

	"github.com/muurk/improv/internal/protocol"
)

// Status is the station-side Wi-Fi status as seen by the provisioning service
type Status int

const (
	StatusIdle          Status = iota // No connection attempted
	StatusConnecting                  // Association in progress
	StatusConnected                   // Associated and addressed
	StatusFailed                      // Credentials rejected by the access point
	StatusInvalidConfig               // Network not found or settings unusable
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusFailed:
		return "Failed"
	case StatusInvalidConfig:
		return "InvalidConfig"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// EventType identifies a network event
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event reports a change in station connectivity
type Event struct {
	Type   EventType
	SSID   string
	Status Status // Status after the event
	Reason string // Why a disconnect happened, empty on connect
}

// Provider is the Wi-Fi stack the provisioning service drives
type Provider interface {
	// Status returns the current station status
	Status() Status
	// Scan refreshes the visible access point list
	Scan(ctx context.Context) error
	// AccessPoints returns the result of the last completed scan
	AccessPoints() []protocol.AccessPoint
	// Connect starts an asynchronous connection attempt. The outcome is
	// reported through subscribed event handlers.
	Connect(ssid, password string) error
	// URL returns the address clients can reach the device at once
	// connected, or "" when not connected
	URL() string
	// Subscribe registers fn for network events and returns a function that
	// removes it
	Subscribe(fn func(Event)) (unsubscribe func())
}
