package transport

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/protocol"
	"go.uber.org/zap"
)

// Capture directions
const (
	DirectionReceived = "client->device"
	DirectionSent     = "device->client"
)

// Record is one captured frame
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Seq          int       `json:"seq"`
	Session      string    `json:"session"`
	Transport    string    `json:"transport"`
	Direction    string    `json:"direction"`
	PacketType   string    `json:"packet_type"`
	PayloadLen   int       `json:"payload_length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadASCII string    `json:"payload_ascii"`
	RawFrameHex  string    `json:"raw_frame_hex"`
	Error        string    `json:"error,omitempty"`
}

// Capture appends frame records to a JSON Lines file
type Capture struct {
	mu   sync.Mutex
	path string
	seq  int
}

// NewCapture creates dir if needed and returns a Capture writing to a
// timestamped file inside it
func NewCapture(dir string) (*Capture, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	logging.Info("Capturing frames", zap.String("file", path))
	return &Capture{path: path}, nil
}

// Path returns the capture file path
func (c *Capture) Path() string { return c.path }

// Record appends raw as a frame record. Failures are logged, never returned,
// so a full disk does not stop provisioning.
func (c *Capture) Record(s *Session, direction string, raw []byte) {
	c.record(s, direction, raw, nil)
}

// RecordRejected appends a frame that failed validation, with the reason
// in the record's error field
func (c *Capture) RecordRejected(s *Session, direction string, raw []byte, reason error) {
	c.record(s, direction, raw, reason)
}

func (c *Capture) record(s *Session, direction string, raw []byte, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	rec := Record{
		Timestamp:   time.Now(),
		Seq:         c.seq,
		Session:     s.ID(),
		Transport:   s.Transport(),
		Direction:   direction,
		RawFrameHex: hex.EncodeToString(raw),
	}
	if reason != nil {
		rec.Error = reason.Error()
	}
	if len(raw) >= protocol.MinFrameSize {
		payload := protocol.PayloadOf(raw)
		rec.PacketType = protocol.PacketType(raw[7]).String()
		rec.PayloadLen = len(payload)
		rec.PayloadHex = hex.EncodeToString(payload)
		rec.PayloadASCII = toASCII(payload)
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", c.path),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal frame record", zap.Error(err))
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write capture file",
			zap.String("filename", c.path),
			zap.Error(err),
		)
	}
}

// ReadCapture loads every record from a capture file
func ReadCapture(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("capture line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return records, nil
}

// Raw decodes the record's frame bytes
func (r Record) Raw() ([]byte, error) {
	return hex.DecodeString(r.RawFrameHex)
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
