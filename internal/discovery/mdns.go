package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/protocol"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type for Improv endpoints
	ServiceType = "_improv._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default WebSocket port
	DefaultPort = 8080

	// DefaultPath is the default WebSocket path
	DefaultPath = "/improv"
)

// AdvertiseConfig describes the service announced by Advertise
type AdvertiseConfig struct {
	Instance string // Defaults to Device.DeviceName
	Service  string // Defaults to ServiceType
	Port     int
	Path     string
	Secure   bool
	Device   protocol.DeviceInfo
}

// Advertiser announces an Improv endpoint over mDNS until Shutdown
type Advertiser struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise registers the endpoint on all multicast-capable interfaces
func Advertise(cfg AdvertiseConfig) (*Advertiser, error) {
	if cfg.Instance == "" {
		cfg.Instance = cfg.Device.DeviceName
	}
	if cfg.Instance == "" {
		return nil, fmt.Errorf("mDNS instance name is required")
	}
	if cfg.Service == "" {
		cfg.Service = ServiceType
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	txt := BuildTXT(cfg.Device, cfg.Path, cfg.Secure)
	server, err := zeroconf.Register(cfg.Instance, cfg.Service, ServiceDomain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising Improv endpoint",
		zap.String("instance", cfg.Instance),
		zap.String("service", cfg.Service),
		zap.Int("port", cfg.Port),
		zap.Strings("txt", txt),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the announcement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.once.Do(a.server.Shutdown)
}

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration

	// Service is the service type browsed for
	Service string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
	}
}

// ScanForDevices discovers all Improv endpoints on the local network
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	devices := make([]*Device, 0)
	seen := make(map[string]bool)
	done := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device == nil || seen[device.Instance] {
				continue
			}
			seen[device.Instance] = true
			devices = append(devices, device)
		}
	}()

	if err := resolver.Browse(ctx, s.Service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// The resolver closes entries once ctx is done
	<-ctx.Done()
	<-done

	return devices, nil
}

// WaitForDevice waits for the endpoint with the given instance name
func (s *Scanner) WaitForDevice(ctx context.Context, instance string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	deviceChan := make(chan *Device, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device != nil && device.Instance == instance {
				select {
				case deviceChan <- device:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, s.Service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	select {
	case device := <-deviceChan:
		return device, nil
	default:
		return nil, fmt.Errorf("device %s not found within timeout", instance)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry does not advertise Improv or has no address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	metadata := ParseTXT(entry.Text)
	if _, ok := metadata[TXTImprov]; !ok {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Device{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
