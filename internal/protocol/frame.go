package protocol

import (
	"errors"
	"fmt"
)

// Frame layout constants
const (
	Prefix          = "IMPROV"
	ProtocolVersion = 0x01

	PrefixSize   = 6
	HeaderSize   = PrefixSize + 3 // prefix + version + type + length
	ChecksumSize = 1
	MinFrameSize = HeaderSize + ChecksumSize

	// MaxPayloadSize is bounded by the single length byte in the header
	MaxPayloadSize = 0xFF
	MaxFrameSize   = HeaderSize + MaxPayloadSize + ChecksumSize

	offsetVersion = 6
	offsetType    = 7
	offsetLength  = 8
)

var (
	// ErrFrameTooShort indicates fewer bytes than a minimal frame
	ErrFrameTooShort = errors.New("frame too short")
	// ErrBadPrefix indicates the frame does not start with "IMPROV"
	ErrBadPrefix = errors.New("invalid frame prefix")
	// ErrBadVersion indicates an unsupported protocol version
	ErrBadVersion = errors.New("unsupported protocol version")
	// ErrLengthMismatch indicates the declared payload length disagrees with the frame size
	ErrLengthMismatch = errors.New("payload length mismatch")
	// ErrPayloadTooLarge indicates a payload that does not fit the 8-bit length field
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ChecksumError reports a checksum mismatch on a received frame
type ChecksumError struct {
	Expected byte   // Checksum computed over the received bytes
	Actual   byte   // Checksum byte carried by the frame
	Raw      []byte // The rejected frame, set by ParseFrame
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: computed 0x%02x, frame carries 0x%02x", e.Expected, e.Actual)
}

// Frame is a validated Improv packet
type Frame struct {
	Version  byte
	Type     PacketType
	Payload  []byte
	Checksum byte
	Raw      []byte // Complete frame bytes
}

// BuildPrefixedPacket allocates a packet for payloadLen bytes of payload and
// writes the prefix, version, type and length header. The payload region and
// the trailing checksum byte are left zeroed; call WriteChecksum once the
// payload has been written.
//
// Packet layout:
//
//	[0-5]   "IMPROV"
//	[6]     version (0x01)
//	[7]     packet type
//	[8]     payload length
//	[9..]   payload
//	[last]  checksum
func BuildPrefixedPacket(payloadLen int, packetType PacketType) ([]byte, error) {
	if payloadLen < 0 || payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, payloadLen, MaxPayloadSize)
	}

	packet := make([]byte, HeaderSize+payloadLen+ChecksumSize)
	copy(packet, Prefix)
	packet[offsetVersion] = ProtocolVersion
	packet[offsetType] = byte(packetType)
	packet[offsetLength] = byte(payloadLen)

	return packet, nil
}

// PayloadOf returns the payload region of a packet built by BuildPrefixedPacket
func PayloadOf(packet []byte) []byte {
	if len(packet) < MinFrameSize {
		return nil
	}
	return packet[HeaderSize : len(packet)-ChecksumSize]
}

// Checksum returns the low 8 bits of the sum of data
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// WriteChecksum computes the checksum over every byte of packet except the
// last, stores it in the last byte and returns it.
func WriteChecksum(packet []byte) byte {
	if len(packet) == 0 {
		return 0
	}
	sum := Checksum(packet[:len(packet)-1])
	packet[len(packet)-1] = sum
	return sum
}

// VerifyChecksum recomputes the checksum over data and compares it with received
func VerifyChecksum(data []byte, received byte) error {
	if computed := Checksum(data); computed != received {
		return &ChecksumError{Expected: computed, Actual: received}
	}
	return nil
}

// ParseFrame validates a complete frame and returns its decoded fields.
// data must contain exactly one frame.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (minimum %d)", ErrFrameTooShort, len(data), MinFrameSize)
	}
	if string(data[:PrefixSize]) != Prefix {
		return nil, fmt.Errorf("%w: %q", ErrBadPrefix, data[:PrefixSize])
	}
	if data[offsetVersion] != ProtocolVersion {
		return nil, fmt.Errorf("%w: 0x%02x (expected 0x%02x)", ErrBadVersion, data[offsetVersion], ProtocolVersion)
	}

	payloadLen := int(data[offsetLength])
	if want := HeaderSize + payloadLen + ChecksumSize; len(data) != want {
		return nil, fmt.Errorf("%w: frame is %d bytes, header declares %d", ErrLengthMismatch, len(data), want)
	}

	checksum := data[len(data)-1]
	if computed := Checksum(data[:len(data)-1]); computed != checksum {
		return nil, &ChecksumError{Expected: computed, Actual: checksum, Raw: data}
	}

	return &Frame{
		Version:  data[offsetVersion],
		Type:     PacketType(data[offsetType]),
		Payload:  data[HeaderSize : len(data)-ChecksumSize],
		Checksum: checksum,
		Raw:      data,
	}, nil
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{ver=0x%02x, type=%s, len=%d, checksum=0x%02x}",
		f.Version, f.Type, len(f.Payload), f.Checksum)
}
