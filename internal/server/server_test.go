package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/improv/internal/metrics"
	"github.com/muurk/improv/internal/network"
	"github.com/muurk/improv/internal/protocol"
	"github.com/muurk/improv/internal/provision"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestService(t *testing.T) *provision.Service {
	t.Helper()
	sim := network.NewSimulator(network.SimulatorConfig{
		Networks:     []network.SimulatedNetwork{{SSID: "Home", RSSI: -50, Password: "secret"}},
		ConnectDelay: time.Millisecond,
		Address:      "192.168.1.20",
	})
	svc := provision.NewService(sim, protocol.DeviceInfo{
		FirmwareName:    "improv-go",
		FirmwareVersion: "0.1.0",
		ChipVariant:     "sim",
		DeviceName:      "server-test",
	})
	t.Cleanup(func() {
		svc.Close()
		sim.Close()
	})
	return svc
}

func newTestServer(t *testing.T, cfg *Config, gatherer prometheus.Gatherer) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg, newTestService(t), gatherer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrame collects binary messages until one complete frame is decoded
func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	var s protocol.FrameScanner
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		for _, b := range msg {
			frame, err := s.Feed(b)
			if err != nil {
				t.Fatalf("frame error: %v", err)
			}
			if frame != nil {
				return frame
			}
		}
	}
}

func command(t *testing.T, code protocol.CommandCode) []byte {
	t.Helper()
	packet, err := protocol.BuildRPCCommand(code, nil)
	if err != nil {
		t.Fatalf("BuildRPCCommand() error = %v", err)
	}
	return packet
}

func TestNew_DefaultPath(t *testing.T) {
	cfg := &Config{Listen: "127.0.0.1:0"}
	if _, err := New(cfg, newTestService(t), nil); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Path != "/improv" {
		t.Errorf("Path = %q, want /improv", cfg.Path)
	}
}

func TestNew_TLSRequiresBothFiles(t *testing.T) {
	_, err := New(&Config{CertPath: "cert.pem"}, newTestService(t), nil)
	if err == nil {
		t.Fatal("New() with only a certificate should fail")
	}
}

func TestWebSocket_GetCurrentState(t *testing.T) {
	_, ts := newTestServer(t, &Config{}, nil)
	conn := dial(t, ts, "/improv")

	if err := conn.WriteMessage(websocket.BinaryMessage, command(t, protocol.CommandGetCurrentState)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	frame := readFrame(t, conn)
	want := protocol.BuildCurrentState(protocol.StateReadyAuthorized)
	if !bytes.Equal(frame.Raw, want) {
		t.Errorf("response % x, want % x", frame.Raw, want)
	}
}

func TestWebSocket_FrameSplitAcrossMessages(t *testing.T) {
	_, ts := newTestServer(t, &Config{}, nil)
	conn := dial(t, ts, "/improv")

	packet := command(t, protocol.CommandGetDeviceInfo)
	for _, part := range [][]byte{packet[:3], packet[3:8], packet[8:]} {
		if err := conn.WriteMessage(websocket.BinaryMessage, part); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
	}

	frame := readFrame(t, conn)
	_, strs, err := protocol.ParseRPCResult(frame.Payload)
	if err != nil {
		t.Fatalf("ParseRPCResult() error = %v", err)
	}
	if len(strs) != 4 || strs[3] != "server-test" {
		t.Errorf("device info = %q", strs)
	}
}

func TestWebSocket_Provision(t *testing.T) {
	_, ts := newTestServer(t, &Config{}, nil)
	conn := dial(t, ts, "/improv")

	packet, err := protocol.BuildWifiSettings("Home", "secret")
	if err != nil {
		t.Fatalf("BuildWifiSettings() error = %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, packet); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	// Credentials are not acknowledged; the next frame follows the connect
	if frame := readFrame(t, conn); !bytes.Equal(frame.Raw, protocol.BuildCurrentState(protocol.StateProvisioned)) {
		t.Fatalf("first response % x, want Provisioned", frame.Raw)
	}

	frame := readFrame(t, conn)
	cmd, strs, err := protocol.ParseRPCResult(frame.Payload)
	if err != nil {
		t.Fatalf("ParseRPCResult() error = %v", err)
	}
	if cmd != protocol.CommandWifiSettings || len(strs) != 1 || strs[0] != "http://192.168.1.20" {
		t.Errorf("result = %v %q, want WifiSettings [http://192.168.1.20]", cmd, strs)
	}
}

func TestWebSocket_ActiveConnections(t *testing.T) {
	s, ts := newTestServer(t, &Config{}, nil)
	conn := dial(t, ts, "/improv")

	// The round trip guarantees the handler is running
	_ = conn.WriteMessage(websocket.BinaryMessage, command(t, protocol.CommandGetCurrentState))
	readFrame(t, conn)

	if got := s.GetActiveConnections(); got != 1 {
		t.Errorf("GetActiveConnections() = %d, want 1", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	deadline := time.Now().Add(2 * time.Second)
	for s.GetActiveConnections() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection still tracked after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	_, ts := newTestServer(t, &Config{MetricsPath: "/metrics"}, reg)
	conn := dial(t, ts, "/improv")
	_ = conn.WriteMessage(websocket.BinaryMessage, command(t, protocol.CommandGetCurrentState))
	readFrame(t, conn)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "improv_frames_received_total") {
		t.Errorf("metrics output missing improv_frames_received_total:\n%s", body)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	s, err := New(&Config{}, newTestService(t), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
