// Package discovery announces and finds Improv endpoints over mDNS.
//
// improvd advertises its WebSocket endpoint as an "_improv._tcp" service
// with TXT records describing the device:
//
//	improv=1          protocol version
//	path=/improv      WebSocket path
//	tls=1             present when served over wss://
//	fw, ver, chip     firmware name, version and chip variant
//	name              device name
//
// improvctl browses for the same service type and keeps only entries that
// carry the improv record.
//
// # Usage Example
//
//	adv, err := discovery.Advertise(discovery.AdvertiseConfig{
//	    Port:   8080,
//	    Device: info,
//	})
//	if err != nil {
//	    return err
//	}
//	defer adv.Shutdown()
//
//	devices, err := discovery.NewScanner().ScanForDevices(ctx)
package discovery
