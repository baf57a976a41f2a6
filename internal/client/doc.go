// Package client is the host side of Improv: it sends commands to a device
// over a serial port or an improvd WebSocket endpoint and decodes the
// replies.
//
//	c, err := client.OpenSerial("/dev/ttyUSB0", 115200)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	url, err := c.Provision(ctx, "HomeNetwork", "secret", nil)
//
// The device never acknowledges credentials directly. Provision polls the
// current state until the device reports Provisioned or an error.
package client
