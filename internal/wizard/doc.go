// Package wizard implements the interactive provisioning wizard behind
// 'improvctl wizard'.
//
// The wizard is a Bubble Tea program walking through four screens:
//
//  1. Discovery: browse mDNS for improvd endpoints, or type a URL
//  2. Networks: pick one of the networks the device scanned
//  3. Password: enter the passphrase (skipped for open networks)
//  4. Provisioning and result: follow the device state until it reports
//     Provisioned or an error
//
// Device access goes through the Device interface, which *client.Client
// satisfies, so the screens can be driven in tests without hardware.
package wizard
