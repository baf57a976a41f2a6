package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketWriteWait bounds each message write
const WebSocketWriteWait = 10 * time.Second

// WebSocketStream presents a WebSocket connection as a byte stream. Reads
// concatenate message payloads so a frame may span messages. Each Write
// is sent as one binary message.
type WebSocketStream struct {
	conn *websocket.Conn
	r    io.Reader

	writeMu sync.Mutex
}

// NewWebSocketStream wraps conn. The caller keeps ownership of read
// deadlines and ping handling.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

// Read implements io.Reader. A normal close from the peer reads as io.EOF.
func (s *WebSocketStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write implements io.Writer
func (s *WebSocketStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteWait)); err != nil {
		return 0, err
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal close message and closes the connection
func (s *WebSocketStream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}
