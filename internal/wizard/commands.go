package wizard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/improv/internal/discovery"
	"github.com/muurk/improv/internal/protocol"
)

// Device is the host side of an Improv connection
type Device interface {
	Info(ctx context.Context) (protocol.DeviceInfo, error)
	Scan(ctx context.Context) ([]protocol.AccessPoint, error)
	Provision(ctx context.Context, ssid, password string, onState func(protocol.State)) (string, error)
	Close() error
}

// Connector opens a Device for a target such as a WebSocket URL
type Connector func(ctx context.Context, target string) (Device, error)

// Browser lists endpoints advertised on the local network
type Browser func(ctx context.Context) ([]*discovery.Device, error)

// Messages for async operations
type browseDoneMsg struct {
	devices []*discovery.Device
	err     error
}

type connectedMsg struct {
	target string
	device Device
	info   protocol.DeviceInfo
	err    error
}

type scanDoneMsg struct {
	aps []protocol.AccessPoint
	err error
}

type stateMsg protocol.State

type provisionDoneMsg struct {
	url string
	err error
}

func browseCmd(ctx context.Context, browse Browser) tea.Cmd {
	return func() tea.Msg {
		devices, err := browse(ctx)
		return browseDoneMsg{devices: devices, err: err}
	}
}

func connectCmd(ctx context.Context, connect Connector, target string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		dev, err := connect(ctx, target)
		if err != nil {
			return connectedMsg{target: target, err: err}
		}
		info, err := dev.Info(ctx)
		if err != nil {
			_ = dev.Close()
			return connectedMsg{target: target, err: err}
		}
		return connectedMsg{target: target, device: dev, info: info}
	}
}

func scanCmd(ctx context.Context, dev Device, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		aps, err := dev.Scan(ctx)
		return scanDoneMsg{aps: aps, err: err}
	}
}

// provisionCmd runs the provisioning in the background and streams state
// changes followed by a provisionDoneMsg into events
func provisionCmd(ctx context.Context, dev Device, timeout time.Duration, ssid, password string, events chan<- tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			defer close(events)
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			url, err := dev.Provision(ctx, ssid, password, func(s protocol.State) {
				select {
				case events <- stateMsg(s):
				default:
				}
			})
			events <- provisionDoneMsg{url: url, err: err}
		}()
		return nil
	}
}

// waitEvent delivers the next message from events
func waitEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}
