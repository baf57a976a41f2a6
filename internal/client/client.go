package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/protocol"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often Provision asks for the current state
// while waiting for the device to connect
const DefaultPollInterval = time.Second

var (
	// ErrClosed is returned once the connection to the device is gone
	ErrClosed = errors.New("connection to device closed")

	// ErrUnexpectedResponse is returned when a result cannot be interpreted
	ErrUnexpectedResponse = errors.New("unexpected response from device")
)

// DeviceError is an Improv error state reported by the device
type DeviceError struct {
	Code protocol.ErrorCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device reported error: %s", e.Code)
}

// StateReport is the answer to GetCurrentState
type StateReport struct {
	State protocol.State
	URL   string // Only reported once provisioned
}

// Client speaks Improv to a device over any byte stream. Requests are
// serialized; frames that arrive outside a request are discarded.
type Client struct {
	rw   io.ReadWriteCloser
	name string

	frames chan *protocol.Frame
	closed chan struct{} // Closed by Close
	done   chan struct{} // Closed by readLoop on exit
	err    error         // Set before done is closed

	reqMu     sync.Mutex
	closeOnce sync.Once

	pollInterval time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithPollInterval sets how often Provision polls the device state. Zero
// disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New starts reading frames from rw. name identifies the device in logs.
func New(rw io.ReadWriteCloser, name string, opts ...Option) *Client {
	c := &Client{
		rw:           rw,
		name:         name,
		frames:       make(chan *protocol.Frame, 64),
		closed:       make(chan struct{}),
		done:         make(chan struct{}),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Close closes the underlying stream and stops the reader
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.rw.Close()
	})
	return err
}

func (c *Client) readLoop() {
	var scanner protocol.FrameScanner
	buf := make([]byte, 256)

	for {
		n, err := c.rw.Read(buf)
		for _, b := range buf[:n] {
			frame, ferr := scanner.Feed(b)
			if ferr != nil {
				logging.Warn("Discarding corrupt frame from device",
					zap.String("device", c.name),
					zap.Error(ferr),
				)
				continue
			}
			if frame == nil {
				continue
			}
			logging.LogFrame("received", frame.Raw)
			select {
			case c.frames <- frame:
			case <-c.closed:
				c.finish(ErrClosed)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || c.isClosed() {
				err = ErrClosed
			}
			c.finish(err)
			return
		}
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// finish records why the reader stopped; only readLoop calls it
func (c *Client) finish(err error) {
	c.err = err
	close(c.done)
}

// drain discards frames left over from earlier requests
func (c *Client) drain() {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

func (c *Client) send(packet []byte) error {
	logging.LogFrame("sent", packet)
	if _, err := c.rw.Write(packet); err != nil {
		return fmt.Errorf("failed to write to %s: %w", c.name, err)
	}
	return nil
}

func (c *Client) sendCommand(code protocol.CommandCode) error {
	packet, err := protocol.BuildRPCCommand(code, nil)
	if err != nil {
		return err
	}
	return c.send(packet)
}

// next waits for the next frame. Error states are returned as *DeviceError.
func (c *Client) next(ctx context.Context) (*protocol.Frame, error) {
	select {
	case frame := <-c.frames:
		if err := errorOf(frame); err != nil {
			return nil, err
		}
		return frame, nil
	case <-c.done:
		return nil, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// errorOf returns a *DeviceError for an error state frame
func errorOf(frame *protocol.Frame) error {
	if frame.Type != protocol.PacketTypeErrorState || len(frame.Payload) == 0 {
		return nil
	}
	if code := protocol.ErrorCode(frame.Payload[0]); code != protocol.ErrorNone {
		return &DeviceError{Code: code}
	}
	return nil
}

// nextResult waits for an RPC result for one of codes
func (c *Client) nextResult(ctx context.Context, codes ...protocol.CommandCode) (protocol.CommandCode, []string, error) {
	for {
		frame, err := c.next(ctx)
		if err != nil {
			return 0, nil, err
		}
		if frame.Type != protocol.PacketTypeRPCResponse {
			continue
		}
		cmd, strs, err := protocol.ParseRPCResult(frame.Payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		for _, code := range codes {
			if cmd == code {
				return cmd, strs, nil
			}
		}
	}
}

// State asks the device for its provisioning state. A provisioned device
// also reports its URL.
func (c *Client) State(ctx context.Context) (*StateReport, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.drain()
	if err := c.sendCommand(protocol.CommandGetCurrentState); err != nil {
		return nil, err
	}

	for {
		frame, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if frame.Type != protocol.PacketTypeCurrentState || len(frame.Payload) == 0 {
			continue
		}
		report := &StateReport{State: protocol.State(frame.Payload[0])}
		if report.State != protocol.StateProvisioned {
			return report, nil
		}

		_, strs, err := c.nextResult(ctx, protocol.CommandGetCurrentState)
		if err != nil {
			return nil, err
		}
		if len(strs) > 0 {
			report.URL = strs[0]
		}
		return report, nil
	}
}

// Info asks the device for its firmware and name
func (c *Client) Info(ctx context.Context) (protocol.DeviceInfo, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.drain()
	if err := c.sendCommand(protocol.CommandGetDeviceInfo); err != nil {
		return protocol.DeviceInfo{}, err
	}

	_, strs, err := c.nextResult(ctx, protocol.CommandGetDeviceInfo)
	if err != nil {
		return protocol.DeviceInfo{}, err
	}

	// Devices stop encoding at the first empty string
	var fields [4]string
	copy(fields[:], strs)
	return protocol.DeviceInfo{
		FirmwareName:    fields[0],
		FirmwareVersion: fields[1],
		ChipVariant:     fields[2],
		DeviceName:      fields[3],
	}, nil
}

// Scan asks the device for the networks it can see. The list ends at the
// first empty result.
func (c *Client) Scan(ctx context.Context) ([]protocol.AccessPoint, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.drain()
	if err := c.sendCommand(protocol.CommandGetWifiNetworks); err != nil {
		return nil, err
	}

	var aps []protocol.AccessPoint
	for {
		_, strs, err := c.nextResult(ctx, protocol.CommandGetWifiNetworks)
		if err != nil {
			return nil, err
		}
		if len(strs) == 0 {
			return aps, nil
		}
		ap, err := parseAccessPoint(strs)
		if err != nil {
			return nil, err
		}
		aps = append(aps, ap)
	}
}

func parseAccessPoint(strs []string) (protocol.AccessPoint, error) {
	if len(strs) != 3 {
		return protocol.AccessPoint{}, fmt.Errorf("%w: network entry has %d fields", ErrUnexpectedResponse, len(strs))
	}
	rssi, err := strconv.Atoi(strs[1])
	if err != nil {
		return protocol.AccessPoint{}, fmt.Errorf("%w: bad signal strength %q", ErrUnexpectedResponse, strs[1])
	}
	return protocol.AccessPoint{
		SSID:         strs[0],
		RSSI:         rssi,
		AuthRequired: strs[2] == "YES",
	}, nil
}

// Provision sends Wi-Fi credentials and waits until the device reports it
// is provisioned, returning the device URL (possibly empty). onState, if
// set, is called for every state the device reports while waiting.
func (c *Client) Provision(ctx context.Context, ssid, password string, onState func(protocol.State)) (string, error) {
	packet, err := protocol.BuildWifiSettings(ssid, password)
	if err != nil {
		return "", err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.drain()
	if err := c.send(packet); err != nil {
		return "", err
	}
	logging.Info("Credentials sent", zap.String("device", c.name), zap.String("ssid", ssid))

	var poll <-chan time.Time
	if c.pollInterval > 0 {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	provisioned := false
	for {
		var frame *protocol.Frame
		select {
		case <-poll:
			if !provisioned {
				if err := c.sendCommand(protocol.CommandGetCurrentState); err != nil {
					return "", err
				}
			}
			continue
		case frame = <-c.frames:
		case <-c.done:
			return "", c.err
		case <-ctx.Done():
			return "", ctx.Err()
		}

		if err := errorOf(frame); err != nil {
			return "", err
		}

		switch frame.Type {
		case protocol.PacketTypeCurrentState:
			if len(frame.Payload) == 0 {
				continue
			}
			state := protocol.State(frame.Payload[0])
			if onState != nil {
				onState(state)
			}
			if state == protocol.StateProvisioned {
				provisioned = true
			}

		case protocol.PacketTypeRPCResponse:
			cmd, strs, err := protocol.ParseRPCResult(frame.Payload)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
			}
			if !provisioned || (cmd != protocol.CommandWifiSettings && cmd != protocol.CommandGetCurrentState) {
				continue
			}
			if len(strs) > 0 {
				return strs[0], nil
			}
			return "", nil
		}
	}
}
