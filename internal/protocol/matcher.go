package protocol

// CommandFunc receives a command decoded from a validated RPC frame
type CommandFunc func(cmd Command) bool

// ErrorFunc receives frame-level errors (checksum mismatch)
type ErrorFunc func(code ErrorCode)

// ParseSerialByte advances frame matching by one byte.
//
// position is the 0-based offset of b within the current frame attempt and
// buffer holds the bytes received so far in this attempt (at least position
// bytes; it may already include b). The function keeps no state of its own.
//
// Positions:
//
//	0-6       "IMPROV" + version, must match exactly
//	7-8       packet type and payload length, accepted
//	9..8+L    payload, accepted
//	9+L       checksum, verified
//
// It returns true while the frame is still being matched. It returns false
// when the byte does not belong to a frame, on checksum failure (after
// calling onError with ErrorInvalidRPC) and once a frame is complete. After
// false the caller restarts at position 0 with the next byte.
//
// Only RPC frames are decoded and delivered to onCommand; other packet types
// are accepted without a callback.
func ParseSerialByte(position int, b byte, buffer []byte, onCommand CommandFunc, onError ErrorFunc) bool {
	if position < 0 || len(buffer) < position {
		return false
	}

	if position < PrefixSize {
		return b == Prefix[position]
	}
	if position == offsetVersion {
		return b == ProtocolVersion
	}
	if position <= offsetLength {
		return true
	}

	packetType := PacketType(buffer[offsetType])
	dataLen := int(buffer[offsetLength])

	if position < HeaderSize+dataLen {
		return true
	}

	if position == HeaderSize+dataLen {
		if err := VerifyChecksum(buffer[:position], b); err != nil {
			if onError != nil {
				onError(ErrorInvalidRPC)
			}
			return false
		}

		if packetType == PacketTypeRPC && onCommand != nil {
			onCommand(ParsePayload(buffer[HeaderSize : HeaderSize+dataLen]))
		}
	}

	return false
}

// Matcher holds the buffer and position that ParseSerialByte needs, for
// callers that receive a stream one byte at a time.
type Matcher struct {
	buf       []byte
	onCommand CommandFunc
	onError   ErrorFunc
}

// NewMatcher creates a Matcher delivering commands and errors to the given callbacks
func NewMatcher(onCommand CommandFunc, onError ErrorFunc) *Matcher {
	return &Matcher{
		buf:       make([]byte, 0, MaxFrameSize),
		onCommand: onCommand,
		onError:   onError,
	}
}

// Feed processes one byte and reports whether a frame is still in progress
func (m *Matcher) Feed(b byte) bool {
	position := len(m.buf)
	m.buf = append(m.buf, b)
	if ParseSerialByte(position, b, m.buf, m.onCommand, m.onError) {
		return true
	}
	m.buf = m.buf[:0]
	return false
}

// Write feeds every byte of p. It never fails.
func (m *Matcher) Write(p []byte) (int, error) {
	for _, b := range p {
		m.Feed(b)
	}
	return len(p), nil
}

// Reset abandons the frame in progress
func (m *Matcher) Reset() {
	m.buf = m.buf[:0]
}

// Pending returns the number of bytes buffered for the frame in progress
func (m *Matcher) Pending() int {
	return len(m.buf)
}

// FrameScanner reassembles frames of every packet type from a byte stream.
// Hosts use it to read device responses.
type FrameScanner struct {
	buf []byte
}

// Feed processes one byte. It returns a frame once one is complete and a
// *ChecksumError when a complete frame fails verification; otherwise both
// results are nil.
func (s *FrameScanner) Feed(b byte) (*Frame, error) {
	position := len(s.buf)
	s.buf = append(s.buf, b)

	switch {
	case position < PrefixSize:
		if b != Prefix[position] {
			s.restart(b)
		}
		return nil, nil
	case position == offsetVersion:
		if b != ProtocolVersion {
			s.restart(b)
		}
		return nil, nil
	case position <= offsetLength:
		return nil, nil
	}

	if position < HeaderSize+int(s.buf[offsetLength]) {
		return nil, nil
	}

	raw := make([]byte, len(s.buf))
	copy(raw, s.buf)
	s.buf = s.buf[:0]

	return ParseFrame(raw)
}

// restart drops the current attempt. A mismatching byte may itself be the
// first byte of the next frame.
func (s *FrameScanner) restart(b byte) {
	s.buf = s.buf[:0]
	if b == Prefix[0] {
		s.buf = append(s.buf, b)
	}
}

// Reset abandons the frame in progress
func (s *FrameScanner) Reset() {
	s.buf = s.buf[:0]
}
