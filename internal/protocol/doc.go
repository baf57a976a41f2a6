// Package protocol implements the Improv Wi-Fi serial provisioning protocol.
//
// This package handles framing, validation, command parsing, response
// construction and command dispatch for devices that accept Wi-Fi
// credentials over a serial link.
//
// # Frame Format
//
// Every packet has this structure:
//   - Prefix: "IMPROV" (6 bytes)
//   - Protocol version: 0x01
//   - Packet type: 1 byte
//   - Payload length: 1 byte
//   - Payload: Variable length
//   - Checksum: 1 byte (sum of all preceding bytes, mod 256)
//
// # Packet Types
//
//   - 0x01 Current state: provisioning state, device to client
//   - 0x02 Error state: error code, device to client
//   - 0x03 RPC command: client to device
//   - 0x04 RPC result: list of strings, device to client
//
// # RPC Commands
//
//   - 0x01 Wi-Fi settings: SSID and password
//   - 0x02 Get current state
//   - 0x03 Get device info: firmware name, version, chip, device name
//   - 0x04 Get Wi-Fi networks: one result per network, then an empty result
//
// # Usage Example - Device Side
//
//	d := protocol.NewDispatcher(protocol.SenderFunc(func(p []byte) bool {
//	    _, err := port.Write(p)
//	    return err == nil
//	}))
//	d.Register(protocol.CommandGetCurrentState, func(cmd protocol.Command) bool {
//	    return d.SendCurrentState(protocol.StateReadyAuthorized)
//	})
//
//	m := protocol.NewMatcher(d.Dispatch, func(code protocol.ErrorCode) {
//	    d.SendError(code)
//	})
//	for _, b := range received {
//	    m.Feed(b)
//	}
//
// # Usage Example - Host Side
//
//	packet, err := protocol.BuildWifiSettings("MyWirelessAP", "mysecurepassword")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	port.Write(packet)
//
//	var s protocol.FrameScanner
//	for _, b := range received {
//	    frame, err := s.Feed(b)
//	    if frame != nil && frame.Type == protocol.PacketTypeRPCResponse {
//	        cmd, strs, _ := protocol.ParseRPCResult(frame.Payload)
//	        fmt.Println(cmd, strs)
//	    }
//	}
//
// # Error Handling
//
// Nothing in this package is fatal:
//   - Prefix mismatch: the byte is dropped and matching restarts
//   - Checksum mismatch: reported as ErrorInvalidRPC through the error callback
//   - Length mismatch: the command parses as CommandUnknown
//   - Unknown or unhandled command codes: Dispatch returns false
//
// # Thread Safety
//
// Parsing and construction functions are stateless and safe for concurrent
// use. Dispatcher, Matcher and FrameScanner are not; each belongs to the
// goroutine that drives its byte stream.
package protocol
