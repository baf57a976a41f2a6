package discovery

import (
	"testing"
	"time"
)

func TestDevice_String(t *testing.T) {
	device := &Device{
		Instance: "kitchen-sensor",
		Hostname: "kitchen-sensor.local.",
		IP:       "192.168.4.16",
		Port:     8080,
	}

	want := "Improv device kitchen-sensor (kitchen-sensor.local.) at 192.168.4.16:8080"
	if got := device.String(); got != want {
		t.Errorf("Device.String() = %v, want %v", got, want)
	}
}

func TestDevice_URL(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{
			name:     "default path",
			device:   &Device{IP: "192.168.4.16", Port: 8080},
			expected: "ws://192.168.4.16:8080/improv",
		},
		{
			name: "custom path",
			device: &Device{IP: "10.0.0.5", Port: 80,
				Metadata: map[string]string{"path": "/ws"}},
			expected: "ws://10.0.0.5:80/ws",
		},
		{
			name: "tls",
			device: &Device{IP: "10.0.0.5", Port: 443,
				Metadata: map[string]string{"tls": "1", "path": "/improv"}},
			expected: "wss://10.0.0.5:443/improv",
		},
		{
			name:     "ipv6",
			device:   &Device{IP: "fe80::1", Port: 8080},
			expected: "ws://[fe80::1]:8080/improv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.URL(); got != tt.expected {
				t.Errorf("Device.URL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	device := &Device{Metadata: map[string]string{"fw": "improv-go", "flag": ""}}

	tests := []struct {
		key      string
		expected string
	}{
		{"fw", "improv-go"},
		{"flag", ""},
		{"missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := device.GetMetadata(tt.key); got != tt.expected {
				t.Errorf("GetMetadata(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestDevice_GetMetadata_NilMap(t *testing.T) {
	device := &Device{}
	if got := device.GetMetadata("any"); got != "" {
		t.Errorf("GetMetadata() on nil map = %q, want empty", got)
	}
}

func TestDevice_DiscoveredAt(t *testing.T) {
	now := time.Now()
	device := &Device{DiscoveredAt: now}
	if !device.DiscoveredAt.Equal(now) {
		t.Errorf("DiscoveredAt = %v, want %v", device.DiscoveredAt, now)
	}
}
