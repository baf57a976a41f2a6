package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "improv"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/improv or $HOME/.config/improv
//   - macOS: $HOME/.config/improv
//   - Windows: %LOCALAPPDATA%\improv
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path, or at GetConfigPath when path is
// empty. A missing file yields DefaultConfig. Fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the transports cannot use
func (c *Config) Validate() error {
	var problems []string

	if c.Version != CurrentVersion {
		problems = append(problems, fmt.Sprintf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if c.Serial.BaudRate <= 0 {
		problems = append(problems, fmt.Sprintf("serial.baud must be positive, got %d", c.Serial.BaudRate))
	}
	if c.Serial.IdleTimeoutMs < 0 {
		problems = append(problems, "serial.idle_timeout_ms must not be negative")
	}
	if c.WebSocket.Listen != "" && !strings.HasPrefix(c.WebSocket.Path, "/") {
		problems = append(problems, fmt.Sprintf("websocket.path must start with '/', got %q", c.WebSocket.Path))
	}
	if (c.WebSocket.Cert == "") != (c.WebSocket.Key == "") {
		problems = append(problems, "websocket.cert and websocket.key must be set together")
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, fmt.Sprintf("metrics.path must start with '/', got %q", c.Metrics.Path))
	}
	if c.MDNS.Enabled && (c.MDNS.Port <= 0 || c.MDNS.Port > 65535) {
		problems = append(problems, fmt.Sprintf("mdns.port out of range: %d", c.MDNS.Port))
	}
	if c.Network.ConnectDelayMs < 0 {
		problems = append(problems, "network.connect_delay_ms must not be negative")
	}
	for i, n := range c.Network.Networks {
		if n.SSID == "" {
			problems = append(problems, fmt.Sprintf("network.networks[%d] has an empty ssid", i))
		}
	}
	for name, s := range map[string]string{
		"firmware_name":    c.Device.FirmwareName,
		"firmware_version": c.Device.FirmwareVersion,
		"chip_variant":     c.Device.ChipVariant,
		"device_name":      c.Device.DeviceName,
	} {
		if len(s) > 255 {
			problems = append(problems, fmt.Sprintf("device.%s longer than 255 bytes", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Save writes the configuration to path, or to GetConfigPath when path is
// empty. Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	// Create directory with user-only permissions (0700)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := marshalConfig(c)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func marshalConfig(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Improv provisioning configuration
#
# Simulated network passwords are stored in plain text. Use this file for
# development devices only.

`)
	return append(header, data...), nil
}
