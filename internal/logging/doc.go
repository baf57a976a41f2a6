// Package logging provides structured logging for the Improv daemon and CLI.
//
// This package wraps a zap logger with convenience functions for common
// logging patterns. Logging is silent unless a level is given explicitly or
// through the IMPROV_LOG_LEVEL environment variable.
//
// # Log Levels
//
//   - Debug: Frame hex dumps, dispatch decisions
//   - Info: Sessions, state changes, provisioning results
//   - Warn: Checksum failures, rejected commands
//   - Error: Transport failures
//
// # Structured Logging
//
//	logging.Info("Provisioning state changed",
//	    zap.String("from", "ReadyAuthorized"),
//	    zap.String("to", "Provisioning"),
//	)
//
// # Frame Logging
//
//	logging.LogFrame("received", frame)
//	logging.LogFrame("sent", packet)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that it never interleaves with protocol frames on
// a console that carries both.
package logging
