package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/transport"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a control message to the peer
	writeWait = transport.WebSocketWriteWait

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// handleWebSocket upgrades the request and runs an Improv session over the
// connection. Each binary or text message carries raw serial bytes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	remote := r.RemoteAddr

	logging.Debug("WebSocket upgrade request details",
		zap.String("remote_addr", remote),
		zap.String("host", r.Host),
		zap.String("origin", r.Header.Get("Origin")),
		zap.String("user_agent", r.Header.Get("User-Agent")),
	)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", remote),
			zap.Error(err),
		)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	s.track(remote, conn)
	defer func() {
		_ = conn.Close()
		s.untrack(remote)
		logging.LogConnection(remote, "websocket_closed")
	}()
	logging.LogConnection(remote, "websocket_upgraded")

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	var opts []transport.SessionOption
	if s.config.Capture != nil {
		opts = append(opts, transport.WithCapture(s.config.Capture))
	}

	stream := transport.NewWebSocketStream(conn)
	if err := transport.Serve(r.Context(), "websocket", remote, stream, s.app, opts...); err != nil {
		logging.Info("Connection closed or error reading frame",
			zap.String("remote_addr", remote),
			zap.Error(err),
		)
	}
}

// keepAlive pings the peer until done is closed
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
