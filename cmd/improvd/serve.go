package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/improv/internal/config"
	"github.com/muurk/improv/internal/discovery"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/metrics"
	"github.com/muurk/improv/internal/network"
	"github.com/muurk/improv/internal/provision"
	"github.com/muurk/improv/internal/server"
	"github.com/muurk/improv/internal/transport"
	"github.com/muurk/improv/internal/version"
)

// Serve command flags
var (
	serialPort    string
	baudRate      int
	listenAddr    string
	certPath      string
	keyPath       string
	metricsListen string
	captureDir    string
	advertise     bool
	logLevel      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Improv over serial and WebSocket",
	Long: `Start answering Improv frames.

At least one transport is required: a serial port (--serial) or a WebSocket
listen address (--listen). Settings not given as flags come from the config
file. Wi-Fi connections are simulated using the networks listed in the
config file.

To capture frames for later analysis with 'improvctl analyze', use the
--capture-dir flag.`,
	Example: `  # Serve on a USB serial adapter
  improvd serve --serial /dev/ttyUSB0

  # Serve WebSocket clients with metrics on the same listener
  improvd serve --listen :8080

  # Both transports, mDNS advertisement and frame capture
  improvd serve --serial /dev/ttyACM0 --listen :8080 --mdns --capture-dir ./captures

  # WebSocket over TLS
  improvd serve --listen :8443 --cert cert.pem --key key.pem`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serialPort, "serial", "", "Serial port to serve (overrides serial.port)")
	serveCmd.Flags().IntVar(&baudRate, "baud", 0, "Serial baud rate (overrides serial.baud)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "WebSocket listen address (overrides websocket.listen)")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Separate listen address for /metrics")
	serveCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory to write frame captures (disabled if not specified)")
	serveCmd.Flags().BoolVar(&advertise, "mdns", false, "Advertise the WebSocket endpoint over mDNS")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error); "+logging.LogLevelEnvVar+" applies when unset")
}

// applyFlags overrides config values with flags the user set
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("serial") {
		cfg.Serial.Port = serialPort
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = baudRate
	}
	if flags.Changed("listen") {
		cfg.WebSocket.Listen = listenAddr
	}
	if flags.Changed("cert") {
		cfg.WebSocket.Cert = certPath
	}
	if flags.Changed("key") {
		cfg.WebSocket.Key = keyPath
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen = metricsListen
	}
	if flags.Changed("capture-dir") {
		cfg.Capture.Dir = captureDir
	}
	if flags.Changed("mdns") {
		cfg.MDNS.Enabled = advertise
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Serial.Port == "" && cfg.WebSocket.Listen == "" {
		return fmt.Errorf("nothing to serve: set --serial or --listen")
	}

	level := logLevel
	if !cmd.Flags().Changed("log-level") && os.Getenv(logging.LogLevelEnvVar) != "" {
		level = ""
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	logging.Info("Starting improvd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)
	metrics.SetBuildInfo(version.Version, version.Commit)

	sim := network.NewSimulator(cfg.Simulator())
	defer sim.Close()
	svc := provision.NewService(sim, cfg.Device)
	defer svc.Close()

	var capture *transport.Capture
	if cfg.Capture.Dir != "" {
		capture, err = transport.NewCapture(cfg.Capture.Dir)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tasks []func(context.Context) error

	if cfg.Serial.Port != "" {
		serial := transport.NewSerial(transport.SerialConfig{
			Port:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.BaudRate,
			IdleTimeout: cfg.IdleTimeout(),
		}, svc, capture)
		tasks = append(tasks, serial.Run)
	}

	if cfg.WebSocket.Listen != "" {
		metricsPath := cfg.Metrics.Path
		if cfg.Metrics.Listen != "" {
			metricsPath = ""
		}
		srv, err := server.New(&server.Config{
			Listen:      cfg.WebSocket.Listen,
			Path:        cfg.WebSocket.Path,
			MetricsPath: metricsPath,
			CertPath:    cfg.WebSocket.Cert,
			KeyPath:     cfg.WebSocket.Key,
			Capture:     capture,
		}, svc, reg)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		tasks = append(tasks, srv.Start)

		if cfg.MDNS.Enabled {
			adv, err := discovery.Advertise(discovery.AdvertiseConfig{
				Instance: cfg.MDNS.Instance,
				Service:  cfg.MDNS.Service,
				Port:     advertisedPort(cfg),
				Path:     cfg.WebSocket.Path,
				Secure:   cfg.WebSocket.Cert != "",
				Device:   cfg.Device,
			})
			if err != nil {
				return err
			}
			defer adv.Shutdown()
		}
	} else if cfg.MDNS.Enabled {
		logging.Warn("mDNS advertisement needs a WebSocket listener, skipping")
	}

	if cfg.Metrics.Listen != "" {
		tasks = append(tasks, func(ctx context.Context) error {
			return serveMetrics(ctx, cfg.Metrics.Listen, cfg.Metrics.Path, reg)
		})
	}

	return runAll(ctx, tasks)
}

// advertisedPort prefers the configured mDNS port and falls back to the
// port of the WebSocket listener
func advertisedPort(cfg *config.Config) int {
	if _, p, err := net.SplitHostPort(cfg.WebSocket.Listen); err == nil {
		if port, err := strconv.Atoi(p); err == nil && port != 0 && cfg.MDNS.Port == discovery.DefaultPort {
			return port
		}
	}
	return cfg.MDNS.Port
}

// runAll runs tasks until ctx is cancelled or one of them fails, then
// waits for the rest to stop
func runAll(ctx context.Context, tasks []func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task func(context.Context) error) {
			defer wg.Done()
			if err := task(ctx); err != nil {
				errc <- err
				cancel()
			}
		}(task)
	}
	wg.Wait()
	close(errc)

	var errs []error
	for err := range errc {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func serveMetrics(ctx context.Context, addr, path string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info("Metrics listening", zap.String("addr", addr), zap.String("path", path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
