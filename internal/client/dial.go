package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/transport"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// serialReadTimeout lets the read loop notice a closed port
const serialReadTimeout = 200 * time.Millisecond

// OpenSerial opens a serial port at 8N1 and returns a client for it
func OpenSerial(port string, baud int, opts ...Option) (*Client, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", port, err)
	}
	if err := p.SetReadTimeout(serialReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", port, err)
	}

	logging.Info("Serial port opened", zap.String("port", port), zap.Int("baud", baud))
	return New(p, port, opts...), nil
}

// ListPorts returns the serial ports present on this machine
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// DialWebSocket connects to an improvd WebSocket endpoint
func DialWebSocket(ctx context.Context, url string, opts ...Option) (*Client, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	logging.Info("WebSocket connected", zap.String("url", url))
	return New(transport.NewWebSocketStream(conn), url, opts...), nil
}
