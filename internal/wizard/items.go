package wizard

import (
	"fmt"

	"github.com/muurk/improv/internal/discovery"
	"github.com/muurk/improv/internal/protocol"
	"github.com/muurk/improv/internal/ui"
)

// deviceItem is an advertised endpoint in the discovery list
type deviceItem struct {
	device *discovery.Device
}

func (d deviceItem) FilterValue() string { return d.device.Instance }

func (d deviceItem) Title() string { return d.device.Instance }

func (d deviceItem) Description() string {
	fw := d.device.GetMetadata(discovery.TXTFirmware)
	if fw == "" {
		fw = "unknown firmware"
	}
	if ver := d.device.GetMetadata(discovery.TXTVersion); ver != "" {
		fw += " " + ver
	}
	return fmt.Sprintf("%s • %s", d.device.URL(), fw)
}

// networkItem is an access point in the network list
type networkItem struct {
	ap protocol.AccessPoint
}

func (n networkItem) FilterValue() string { return n.ap.SSID }

func (n networkItem) Title() string { return n.ap.SSID }

func (n networkItem) Description() string {
	security := "open"
	if n.ap.AuthRequired {
		security = "secured"
	}
	return fmt.Sprintf("%s %d dBm • %s", ui.SignalBars(n.ap.RSSI), n.ap.RSSI, security)
}
