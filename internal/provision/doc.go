// Package provision implements the device's reaction to Improv commands.
//
// A Service owns the provisioning state (ReadyAuthorized, Provisioning,
// Provisioned) and drives a network.Provider:
//
//   - Wi-Fi settings: enter Provisioning and start a connection attempt
//   - Get current state: report the state, or the error left by the last
//     failed attempt, and the device URL once provisioned
//   - Get device info: report firmware name, version, chip and device name
//   - Get Wi-Fi networks: report the last scan, one result per network
//
// Connection outcomes arrive asynchronously as network events and are
// pushed to every attached session: the device URL on success, or
// ErrorUnableToConnect on failure.
//
// # Usage
//
//	svc := provision.NewService(sim, deviceInfo)
//	defer svc.Close()
//
//	detach := svc.Attach(session)
//	defer detach()
package provision
