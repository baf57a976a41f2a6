// Package config loads and saves the YAML configuration shared by the
// improvd daemon and the improvctl client.
//
// # Configuration File Location
//
// The default configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/improv/config.yaml or $HOME/.config/improv/config.yaml
//   - macOS: $HOME/.config/improv/config.yaml
//   - Windows: %LOCALAPPDATA%\improv\config.yaml
//
// A missing file is not an error: Load returns DefaultConfig. Keys absent
// from the file keep their defaults.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Serial.Port = "/dev/ttyUSB0"
//	if err := cfg.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// # Security
//
// The network section holds the credentials the simulated provider accepts.
// Files are written with user-only permissions.
package config
