package discovery

import (
	"strconv"
	"strings"

	"github.com/muurk/improv/internal/protocol"
)

// TXT record keys published by the advertiser
const (
	TXTImprov   = "improv"
	TXTPath     = "path"
	TXTSecure   = "tls"
	TXTFirmware = "fw"
	TXTVersion  = "ver"
	TXTChip     = "chip"
	TXTName     = "name"
)

// BuildTXT returns the TXT records describing an Improv endpoint
func BuildTXT(info protocol.DeviceInfo, path string, secure bool) []string {
	txt := []string{
		TXTImprov + "=" + strconv.Itoa(protocol.ProtocolVersion),
		TXTPath + "=" + path,
	}
	if secure {
		txt = append(txt, TXTSecure+"=1")
	}
	for _, kv := range [][2]string{
		{TXTFirmware, info.FirmwareName},
		{TXTVersion, info.FirmwareVersion},
		{TXTChip, info.ChipVariant},
		{TXTName, info.DeviceName},
	} {
		if kv[1] != "" {
			txt = append(txt, kv[0]+"="+kv[1])
		}
	}
	return txt
}

// ParseTXT splits "key=value" records into a map. Keys without a value
// map to the empty string.
func ParseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}
