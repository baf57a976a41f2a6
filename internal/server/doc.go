// Package server serves Improv sessions over WebSocket for hosts that
// cannot reach the device's serial port directly.
//
// Each connection gets its own transport session. Binary or text messages
// carry the same bytes that would travel over UART, so a browser client can
// speak the serial protocol unchanged. The server optionally terminates TLS
// and exposes Prometheus metrics on a second path.
//
// # Basic Usage
//
//	srv, err := server.New(&server.Config{
//		Listen:      ":8080",
//		Path:        "/improv",
//		MetricsPath: "/metrics",
//	}, service, registry)
//	if err != nil {
//		return err
//	}
//	return srv.Start(ctx)
//
// # Keepalive
//
// The server pings each peer and closes connections that stop answering
// within 60 seconds.
package server
