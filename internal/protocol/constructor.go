package protocol

import (
	"errors"
	"fmt"
)

// Packet constructors for everything the device sends, plus the RPC command
// packets a host sends when driving a device.

// MaxStringLength is the longest string an RPC result can carry
const MaxStringLength = 0xFF

// ErrStringTooLong indicates an RPC result string that does not fit its length byte
var ErrStringTooLong = errors.New("string too long")

// BuildSingleByteResponse builds a packet whose payload is a single byte.
// Used for CurrentState and ErrorState packets.
func BuildSingleByteResponse(packetType PacketType, value byte) []byte {
	// A one-byte payload always fits, so the error is unreachable
	packet, _ := BuildPrefixedPacket(1, packetType)
	packet[HeaderSize] = value
	WriteChecksum(packet)
	return packet
}

// BuildCurrentState builds a CurrentState packet
func BuildCurrentState(state State) []byte {
	return BuildSingleByteResponse(PacketTypeCurrentState, byte(state))
}

// BuildErrorState builds an ErrorState packet
func BuildErrorState(code ErrorCode) []byte {
	return BuildSingleByteResponse(PacketTypeErrorState, byte(code))
}

// BuildRPCResponse builds an RPC result packet answering command.
//
// Payload Structure:
//
//	[0]     command being responded to
//	[1]     data length (sum of 1+len over the encoded strings)
//	[2..]   {length, bytes} per string
//
// Encoding stops at the first empty string, so an empty entry terminates the
// list. Strings longer than MaxStringLength are rejected, as is a result
// list whose payload would overflow the 8-bit length fields.
func BuildRPCResponse(command CommandCode, results []string) ([]byte, error) {
	strs := results
	for i, s := range results {
		if s == "" {
			strs = results[:i]
			break
		}
	}

	dataLen := 0
	for i, s := range strs {
		if len(s) > MaxStringLength {
			return nil, fmt.Errorf("%w: string %d is %d bytes (max %d)", ErrStringTooLong, i, len(s), MaxStringLength)
		}
		dataLen += 1 + len(s)
	}

	payloadLen := rpcHeaderSize + dataLen
	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes of strings for %s", ErrPayloadTooLarge, dataLen, command)
	}

	packet, err := BuildPrefixedPacket(payloadLen, PacketTypeRPCResponse)
	if err != nil {
		return nil, err
	}

	p := PayloadOf(packet)
	p[0] = byte(command)
	p[1] = byte(dataLen)
	i := rpcHeaderSize
	for _, s := range strs {
		p[i] = byte(len(s))
		i++
		i += copy(p[i:], s)
	}

	WriteChecksum(packet)
	return packet, nil
}

// BuildDeviceInfo builds the GetDeviceInfo result: firmware name, firmware
// version, chip variant and device name, in that order.
func BuildDeviceInfo(info DeviceInfo) ([]byte, error) {
	return BuildRPCResponse(CommandGetDeviceInfo, info.Strings())
}

// BuildAccessPoint builds one GetWifiNetworks result entry
func BuildAccessPoint(ap AccessPoint) ([]byte, error) {
	return BuildRPCResponse(CommandGetWifiNetworks, ap.Strings())
}

// BuildRPCCommand builds a client to device RPC packet.
//
// Payload Structure:
//
//	[0]     command
//	[1]     data length
//	[2..]   data
func BuildRPCCommand(command CommandCode, data []byte) ([]byte, error) {
	if len(data) > MaxPayloadSize-rpcHeaderSize {
		return nil, fmt.Errorf("%w: %d data bytes for %s", ErrPayloadTooLarge, len(data), command)
	}

	packet, err := BuildPrefixedPacket(rpcHeaderSize+len(data), PacketTypeRPC)
	if err != nil {
		return nil, err
	}

	p := PayloadOf(packet)
	p[0] = byte(command)
	p[1] = byte(len(data))
	copy(p[rpcHeaderSize:], data)

	WriteChecksum(packet)
	return packet, nil
}

// BuildWifiSettings builds the RPC packet that submits Wi-Fi credentials.
//
// Example: SSID = MyWirelessAP, Password = mysecurepassword
//
//	01 1E 0C {MyWirelessAP} 10 {mysecurepassword}
func BuildWifiSettings(ssid, password string) ([]byte, error) {
	if len(ssid) > MaxStringLength {
		return nil, fmt.Errorf("%w: ssid is %d bytes", ErrStringTooLong, len(ssid))
	}
	if len(password) > MaxStringLength {
		return nil, fmt.Errorf("%w: password is %d bytes", ErrStringTooLong, len(password))
	}

	data := make([]byte, 0, 2+len(ssid)+len(password))
	data = append(data, byte(len(ssid)))
	data = append(data, ssid...)
	data = append(data, byte(len(password)))
	data = append(data, password...)

	return BuildRPCCommand(CommandWifiSettings, data)
}
