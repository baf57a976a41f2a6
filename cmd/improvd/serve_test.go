package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muurk/improv/internal/config"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := serveCmd.Flags().Set("serial", "/dev/ttyUSB1"); err != nil {
		t.Fatal(err)
	}
	if err := serveCmd.Flags().Set("mdns", "true"); err != nil {
		t.Fatal(err)
	}

	applyFlags(serveCmd, cfg)

	if cfg.Serial.Port != "/dev/ttyUSB1" {
		t.Errorf("Serial.Port = %q", cfg.Serial.Port)
	}
	if !cfg.MDNS.Enabled {
		t.Error("MDNS.Enabled should be set from --mdns")
	}
	if cfg.WebSocket.Listen != "" {
		t.Errorf("unset --listen changed WebSocket.Listen to %q", cfg.WebSocket.Listen)
	}
}

func TestAdvertisedPort(t *testing.T) {
	tests := []struct {
		name   string
		listen string
		port   int
		want   int
	}{
		{"listener port", ":9000", 8080, 9000},
		{"explicit mdns port", ":9000", 443, 443},
		{"unparseable listener", "bad", 8080, 8080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.WebSocket.Listen = tt.listen
			cfg.MDNS.Port = tt.port
			if got := advertisedPort(cfg); got != tt.want {
				t.Errorf("advertisedPort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunAll(t *testing.T) {
	boom := errors.New("boom")
	stopped := make(chan struct{})

	err := runAll(context.Background(), []func(context.Context) error{
		func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
		func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			return boom
		},
	})

	if !errors.Is(err, boom) {
		t.Errorf("runAll() = %v, want boom", err)
	}
	select {
	case <-stopped:
	default:
		t.Error("failing task did not cancel the others")
	}
}
