package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/improv/internal/protocol"
	"go.bug.st/serial"
)

// pipePort is a serial.Port backed by one end of a net.Pipe. Read honours
// the read timeout the way a real port does: (0, nil) on expiry.
type pipePort struct {
	serial.Port
	conn    net.Conn
	timeout time.Duration
}

func (p *pipePort) Read(b []byte) (int, error) {
	if p.timeout > 0 {
		_ = p.conn.SetReadDeadline(time.Now().Add(p.timeout))
	}
	n, err := p.conn.Read(b)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, nil
	}
	return n, err
}

func (p *pipePort) Write(b []byte) (int, error) { return p.conn.Write(b) }

func (p *pipePort) Close() error { return p.conn.Close() }

func (p *pipePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

// readFrame reads one complete frame from r
func readFrame(t *testing.T, r io.Reader) *protocol.Frame {
	t.Helper()
	var s protocol.FrameScanner
	b := make([]byte, 1)
	for {
		if _, err := r.Read(b); err != nil {
			t.Fatalf("read: %v", err)
		}
		frame, err := s.Feed(b[0])
		if err != nil {
			t.Fatalf("frame error: %v", err)
		}
		if frame != nil {
			return frame
		}
	}
}

func TestServe_OverPipe(t *testing.T) {
	device, client := net.Pipe()
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTestService(t)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "pipe", "test", device, svc)
	}()

	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Write(mustCommand(t, protocol.CommandGetDeviceInfo)); err != nil {
		t.Fatalf("write: %v", err)
	}

	frame := readFrame(t, client)
	_, strs, err := protocol.ParseRPCResult(frame.Payload)
	if err != nil {
		t.Fatalf("ParseRPCResult() error = %v", err)
	}
	if len(strs) != 4 || strs[0] != "improv-go" {
		t.Errorf("device info = %q", strs)
	}

	_ = client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() after client close = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the client closed")
	}
}

func TestSerial_RunServesPort(t *testing.T) {
	device, client := net.Pipe()
	defer func() { _ = client.Close() }()

	var opened atomic.Int32
	tr := NewSerial(SerialConfig{Port: "/dev/ttyTEST", IdleTimeout: 20 * time.Millisecond}, newTestService(t), nil)
	tr.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		if name != "/dev/ttyTEST" || mode.BaudRate != 115200 || mode.DataBits != 8 {
			t.Errorf("open(%q, %+v) unexpected arguments", name, mode)
		}
		if opened.Add(1) > 1 {
			return nil, errors.New("already open")
		}
		return &pipePort{conn: device}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := client.Write(mustCommand(t, protocol.CommandGetCurrentState)); err != nil {
		t.Fatalf("write: %v", err)
	}
	frame := readFrame(t, client)
	if !bytes.Equal(frame.Raw, protocol.BuildCurrentState(protocol.StateReadyAuthorized)) {
		t.Errorf("response % x, want CurrentState ReadyAuthorized", frame.Raw)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSerial_RunRetriesUntilCancelled(t *testing.T) {
	var attempts atomic.Int32
	tr := NewSerial(SerialConfig{Port: "/dev/missing"}, newTestService(t), nil)
	tr.open = func(string, *serial.Mode) (serial.Port, error) {
		attempts.Add(1)
		return nil, errors.New("no such device")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := tr.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil when cancelled", err)
	}
	if ctx.Err() == nil {
		t.Error("Run returned before the deadline expired")
	}
	if attempts.Load() < 1 {
		t.Error("port was never opened")
	}
}

func TestSerial_RunDeadlineShorterThanBackoff(t *testing.T) {
	tr := NewSerial(SerialConfig{Port: "/dev/missing"}, newTestService(t), nil)
	tr.open = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such device")
	}

	// The first retry interval is about a second, well past the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tr.Run(ctx)
	if err != nil {
		t.Fatalf("Run() = %v, want nil for a deadline before the next retry", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Run returned after %v, before the deadline", elapsed)
	}
}
