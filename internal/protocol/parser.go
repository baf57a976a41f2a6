package protocol

import (
	"errors"
	"fmt"
)

// RPC payload layout: [command][data length][data...]
const (
	rpcHeaderSize = 2
)

// ErrMalformedResult indicates an RPC result payload whose string list
// does not match its declared lengths
var ErrMalformedResult = errors.New("malformed RPC result")

// ParsePayload decodes the payload of an RPC packet into a Command.
//
// Payload structure:
//
//	[0]     command code
//	[1]     data length L (must equal len(payload)-2)
//	[2..]   data
//
// For CommandWifiSettings the data is:
//
//	[0]     ssid length S
//	[1..S]  ssid
//	[S+1]   password length P
//	[..]    password (P bytes, may be zero)
//
// Parsing fails closed: a length that disagrees with the payload yields
// CommandUnknown with no fields populated.
func ParsePayload(payload []byte) Command {
	if len(payload) < rpcHeaderSize {
		return Command{Code: CommandUnknown}
	}

	code := CommandCode(payload[0])
	dataLen := int(payload[1])
	if dataLen != len(payload)-rpcHeaderSize {
		return Command{Code: CommandUnknown}
	}

	if code != CommandWifiSettings {
		return Command{Code: code}
	}

	ssid, password, ok := parseWifiSettings(payload[rpcHeaderSize:])
	if !ok {
		return Command{Code: CommandUnknown}
	}

	return Command{Code: code, SSID: ssid, Password: password}
}

// parseWifiSettings decodes [S][ssid][P][password]. A missing password
// length byte is treated the same as P == 0.
func parseWifiSettings(data []byte) (ssid, password string, ok bool) {
	if len(data) < 1 {
		return "", "", false
	}

	ssidLen := int(data[0])
	ssidEnd := 1 + ssidLen
	if ssidEnd > len(data) {
		return "", "", false
	}
	ssid = string(data[1:ssidEnd])

	if ssidEnd == len(data) {
		return ssid, "", true
	}

	passLen := int(data[ssidEnd])
	passStart := ssidEnd + 1
	if passStart+passLen > len(data) {
		return "", "", false
	}
	password = string(data[passStart : passStart+passLen])

	return ssid, password, true
}

// ParseRPC decodes an RPC payload that may carry a trailing checksum byte.
// When checkChecksum is set the last byte of data must equal the truncated
// sum of the preceding bytes, otherwise CommandBadChecksum is returned.
func ParseRPC(data []byte, checkChecksum bool) Command {
	if !checkChecksum {
		return ParsePayload(data)
	}

	if len(data) < rpcHeaderSize+ChecksumSize {
		return Command{Code: CommandUnknown}
	}
	body := data[:len(data)-ChecksumSize]

	// Length check comes first so a truncated packet reports Unknown
	if int(body[1]) != len(body)-rpcHeaderSize {
		return Command{Code: CommandUnknown}
	}

	if err := VerifyChecksum(body, data[len(data)-1]); err != nil {
		return Command{Code: CommandBadChecksum}
	}

	return ParsePayload(body)
}

// ParseRPCResult decodes an RPC result payload into the command being
// responded to and its list of strings.
//
// Payload structure:
//
//	[0]     command being responded to
//	[1]     data length (sum of 1+len over all strings)
//	[2..]   {length, bytes} per string
func ParseRPCResult(payload []byte) (CommandCode, []string, error) {
	if len(payload) < rpcHeaderSize {
		return CommandUnknown, nil, fmt.Errorf("%w: payload is %d bytes", ErrMalformedResult, len(payload))
	}

	code := CommandCode(payload[0])
	dataLen := int(payload[1])
	if dataLen != len(payload)-rpcHeaderSize {
		return code, nil, fmt.Errorf("%w: declared %d data bytes, have %d",
			ErrMalformedResult, dataLen, len(payload)-rpcHeaderSize)
	}

	strs, err := DecodeStrings(payload[rpcHeaderSize:])
	if err != nil {
		return code, nil, err
	}
	return code, strs, nil
}

// DecodeStrings splits a sequence of length-prefixed strings
func DecodeStrings(data []byte) ([]string, error) {
	strs := make([]string, 0, 4)
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		if i+n > len(data) {
			return nil, fmt.Errorf("%w: string at offset %d overruns data (%d > %d)",
				ErrMalformedResult, i-1, i+n, len(data))
		}
		strs = append(strs, string(data[i:i+n]))
		i += n
	}
	return strs, nil
}
