package transport

import (
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/metrics"
	"github.com/muurk/improv/internal/protocol"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is the silence after which a partial frame is dropped
const DefaultIdleTimeout = 50 * time.Millisecond

// Session binds one client byte stream to a matcher and dispatcher.
// Bytes from the client go through Feed; responses are written to the
// stream under a write lock so event-driven sends never interleave with
// command responses.
type Session struct {
	id        string
	transport string
	remote    string

	mu         sync.Mutex // Guards dispatcher, matcher, scanner and lastFeed
	dispatcher *protocol.Dispatcher
	matcher    *protocol.Matcher
	scanner    *protocol.FrameScanner
	lastFeed   time.Time
	idle       time.Duration

	writeMu sync.Mutex
	w       io.Writer
	capture *Capture
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithIdleTimeout sets the silence after which a partial frame is dropped.
// Zero disables the timeout.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.idle = d }
}

// WithCapture records every frame in both directions
func WithCapture(c *Capture) SessionOption {
	return func(s *Session) { s.capture = c }
}

// NewSession creates a session writing responses to w. transport names the
// link ("serial", "websocket") for logs and metrics; remote identifies the
// peer.
func NewSession(transport, remote string, w io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		id:        uuid.NewString(),
		transport: transport,
		remote:    remote,
		w:         w,
		idle:      DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = protocol.NewDispatcher(s)
	s.matcher = protocol.NewMatcher(s.onCommand, s.onFrameError)
	if s.capture != nil {
		s.scanner = &protocol.FrameScanner{}
	}

	metrics.SessionOpened(transport)
	logging.LogConnection(remote, "session_opened")
	logging.Debug("Session created",
		zap.String("session", s.id),
		zap.String("transport", transport),
	)
	return s
}

// ID returns the session's unique identifier
func (s *Session) ID() string { return s.id }

// Transport returns the link name the session was created with
func (s *Session) Transport() string { return s.transport }

// Do runs fn with exclusive access to the dispatcher
func (s *Session) Do(fn func(d *protocol.Dispatcher)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.dispatcher)
}

// Feed processes bytes received from the client. Matched commands are
// dispatched before Feed returns.
func (s *Session) Feed(p []byte) {
	if len(p) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.idle > 0 && s.matcher.Pending() > 0 && now.Sub(s.lastFeed) > s.idle {
		s.dropPartial("idle timeout")
	}
	s.lastFeed = now

	logging.LogRawBytes("Received bytes", p)
	for _, b := range p {
		// Record the request before the matcher dispatches its response
		if s.scanner != nil {
			s.captureReceived(b)
		}
		s.matcher.Feed(b)
	}
}

// captureReceived feeds the capture scanner; must be called with mu held
func (s *Session) captureReceived(b byte) {
	frame, err := s.scanner.Feed(b)
	if frame != nil {
		s.capture.Record(s, DirectionReceived, frame.Raw)
		return
	}
	var csErr *protocol.ChecksumError
	if errors.As(err, &csErr) {
		logging.Debug("Capturing rejected frame",
			zap.String("session", s.id),
			zap.String("raw", hex.EncodeToString(csErr.Raw)),
			zap.Error(err),
		)
		s.capture.RecordRejected(s, DirectionReceived, csErr.Raw, err)
	}
}

// Idle tells the session the link has been silent. A partial frame older
// than the idle timeout is dropped.
func (s *Session) Idle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idle > 0 && s.matcher.Pending() > 0 && time.Since(s.lastFeed) > s.idle {
		s.dropPartial("idle timeout")
	}
}

// dropPartial must be called with mu held
func (s *Session) dropPartial(reason string) {
	logging.Debug("Dropping partial frame",
		zap.String("session", s.id),
		zap.Int("pending", s.matcher.Pending()),
		zap.String("reason", reason),
	)
	s.matcher.Reset()
	if s.scanner != nil {
		s.scanner.Reset()
	}
}

// Send writes packet to the client. It implements protocol.Sender.
func (s *Session) Send(packet []byte) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.w.Write(packet); err != nil {
		logging.Error("Failed to send packet",
			zap.String("session", s.id),
			zap.String("remote", s.remote),
			zap.Error(err),
		)
		return false
	}

	metrics.FrameSent(s.transport)
	if s.capture != nil {
		s.capture.Record(s, DirectionSent, packet)
	}
	return true
}

// Close releases the session's metrics and logs its end
func (s *Session) Close() {
	metrics.SessionClosed(s.transport)
	logging.LogConnection(s.remote, "session_closed")
}

func (s *Session) onCommand(cmd protocol.Command) bool {
	metrics.FrameReceived(s.transport)
	return s.dispatcher.Dispatch(cmd)
}

func (s *Session) onFrameError(code protocol.ErrorCode) {
	metrics.FrameError(s.transport, "checksum")
	logging.Warn("Error processing Improv packet",
		zap.String("session", s.id),
		zap.String("error", code.String()),
	)
	s.dispatcher.SendError(code)
}
