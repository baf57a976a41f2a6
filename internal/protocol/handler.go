package protocol

import (
	"errors"
	"fmt"

	"github.com/muurk/improv/internal/logging"
	"go.uber.org/zap"
)

// Sender transmits an encoded packet and reports whether it was written
type Sender interface {
	Send(packet []byte) bool
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(packet []byte) bool

// Send calls f(packet)
func (f SenderFunc) Send(packet []byte) bool { return f(packet) }

// CommandHandler handles one dispatched command and reports success
type CommandHandler func(cmd Command) bool

// Dispatcher routes decoded commands to registered handlers and sends
// responses through a Sender. It also holds the access point list built
// while answering GetWifiNetworks.
//
// A Dispatcher is not safe for concurrent use. The goroutine driving the
// serial loop owns it; anything else must serialize access.
type Dispatcher struct {
	handlers [256]CommandHandler
	sender   Sender

	apList      []AccessPoint
	apCapacity  int
	apAllocated bool
}

// NewDispatcher creates a Dispatcher that sends packets through sender
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Register installs handler for code, replacing any previous handler
func (d *Dispatcher) Register(code CommandCode, handler CommandHandler) {
	d.handlers[code] = handler
}

// Dispatch invokes the handler registered for cmd.Code and returns its
// result. Commands without a handler return false.
func (d *Dispatcher) Dispatch(cmd Command) bool {
	handler := d.handlers[cmd.Code]
	if handler == nil {
		logging.Debug("No handler registered for command",
			zap.String("command", cmd.Code.String()),
		)
		return false
	}

	logging.Debug("Dispatching command",
		zap.String("command", cmd.String()),
	)
	return handler(cmd)
}

// AllocateList discards any previous access point list and reserves room
// for expected entries
func (d *Dispatcher) AllocateList(expected int) bool {
	d.FreeList()
	if expected < 0 {
		return false
	}
	d.apList = make([]AccessPoint, 0, expected)
	d.apCapacity = expected
	d.apAllocated = true
	return true
}

// AddEntry appends an access point to the list. It fails when no list is
// allocated or the reserved capacity is exhausted.
func (d *Dispatcher) AddEntry(ssid string, rssi int, authRequired bool) bool {
	if !d.apAllocated || len(d.apList) >= d.apCapacity {
		return false
	}
	d.apList = append(d.apList, AccessPoint{
		SSID:         ssid,
		RSSI:         rssi,
		AuthRequired: authRequired,
	})
	return true
}

// FreeList releases the access point list
func (d *Dispatcher) FreeList() {
	d.apList = nil
	d.apCapacity = 0
	d.apAllocated = false
}

// ListCount returns the number of access points in the list
func (d *Dispatcher) ListCount() int {
	return len(d.apList)
}

// SendPacket hands packet to the sender
func (d *Dispatcher) SendPacket(packet []byte) bool {
	if d.sender == nil || len(packet) == 0 {
		return false
	}
	logging.LogFrame("sent", packet)
	return d.sender.Send(packet)
}

// SendCurrentState sends a CurrentState packet
func (d *Dispatcher) SendCurrentState(state State) bool {
	return d.SendPacket(BuildCurrentState(state))
}

// SendError sends an ErrorState packet
func (d *Dispatcher) SendError(code ErrorCode) bool {
	return d.SendPacket(BuildErrorState(code))
}

// SendRPCResponse builds and sends an RPC result packet
func (d *Dispatcher) SendRPCResponse(command CommandCode, results []string) bool {
	packet, err := BuildRPCResponse(command, results)
	return d.sendBuilt(command, packet, err)
}

// sendBuilt sends a packet from one of the RPC result builders, logging
// the build error instead when there is one
func (d *Dispatcher) sendBuilt(command CommandCode, packet []byte, err error) bool {
	if err != nil {
		logging.Error("Failed to build RPC response",
			zap.String("command", command.String()),
			zap.Error(err),
		)
		return false
	}
	return d.SendPacket(packet)
}

// SendDeviceInfo sends the GetDeviceInfo result
func (d *Dispatcher) SendDeviceInfo(info DeviceInfo) bool {
	packet, err := BuildDeviceInfo(info)
	return d.sendBuilt(CommandGetDeviceInfo, packet, err)
}

// SendWifiList sends one result per listed access point followed by an
// empty result marking the end of the list. The terminator is sent even
// when the list is empty or an entry failed to send. The list is freed
// afterwards.
func (d *Dispatcher) SendWifiList() bool {
	ok := true
	for _, ap := range d.apList {
		packet, err := BuildAccessPoint(ap)
		if !d.sendBuilt(CommandGetWifiNetworks, packet, err) {
			ok = false
			break
		}
	}

	sent := len(d.apList)
	d.FreeList()

	if !d.SendRPCResponse(CommandGetWifiNetworks, nil) {
		ok = false
	}

	logging.Debug("Sent Wi-Fi network list",
		zap.Int("entries", sent),
		zap.Bool("ok", ok),
	)
	return ok
}

// SendDeviceURL sends url as a one-string result for fromCommand when it is
// non-empty, then always sends an empty result as terminator.
func (d *Dispatcher) SendDeviceURL(fromCommand CommandCode, url string) bool {
	ok := true
	if url != "" {
		ok = d.SendRPCResponse(fromCommand, []string{url})
	}
	if !d.SendRPCResponse(fromCommand, nil) {
		ok = false
	}
	return ok
}

// ParseSerialLine validates one complete buffered frame and dispatches it.
// A checksum failure is answered with ErrorInvalidRPC. Non-RPC frames are
// accepted and ignored.
func (d *Dispatcher) ParseSerialLine(line []byte) (bool, error) {
	frame, err := ParseFrame(line)
	if err != nil {
		var csErr *ChecksumError
		if errors.As(err, &csErr) {
			d.SendError(ErrorInvalidRPC)
		}
		return false, fmt.Errorf("failed to parse serial line: %w", err)
	}

	if frame.Type != PacketTypeRPC {
		return false, nil
	}
	return d.Dispatch(ParsePayload(frame.Payload)), nil
}
