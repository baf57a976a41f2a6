package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds the server configuration
type Config struct {
	Listen      string // host:port
	Path        string // WebSocket endpoint, default /improv
	MetricsPath string // Prometheus endpoint, empty disables it
	CertPath    string // TLS certificate (optional)
	KeyPath     string // TLS private key (optional)
	Capture     *transport.Capture
}

// Server accepts Improv sessions over WebSocket and serves metrics
type Server struct {
	config      *Config
	app         transport.Attacher
	gatherer    prometheus.Gatherer
	tlsConfig   *tls.Config
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
}

// New creates a new Server. gatherer may be nil when MetricsPath is empty.
func New(config *Config, app transport.Attacher, gatherer prometheus.Gatherer) (*Server, error) {
	if config.Path == "" {
		config.Path = "/improv"
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:      config,
		app:         app,
		gatherer:    gatherer,
		tlsConfig:   tlsConfig,
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return s, nil
}

// Handler returns the HTTP handler serving the WebSocket and metrics endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleWebSocket)
	if s.config.MetricsPath != "" && s.gatherer != nil {
		mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and blocks until ctx is
// cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	logging.Info("Improv WebSocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
		zap.String("metrics", s.config.MetricsPath),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	srv := s.httpServer
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	// Wait for all sessions to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	return nil
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(remote string, conn *websocket.Conn) {
	s.mu.Lock()
	s.activeConns[remote] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(remote string) {
	s.mu.Lock()
	delete(s.activeConns, remote)
	s.mu.Unlock()
}
