// Package network defines the Wi-Fi provider the provisioning service drives
// and a Simulator implementation.
//
// The Simulator stands in for a real station interface: it reports a fixed
// set of access points on scan and resolves connection attempts after a
// configurable delay, succeeding only when the SSID and password match one
// of its configured networks. Outcomes are delivered as Events to subscribers
// from a timer goroutine.
package network
