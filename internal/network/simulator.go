package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/protocol"
	"go.uber.org/zap"
)

// ErrEmptySSID is returned by Connect when no SSID is given
var ErrEmptySSID = errors.New("ssid is empty")

// SimulatedNetwork is an access point visible to the Simulator
type SimulatedNetwork struct {
	SSID     string `yaml:"ssid"`
	RSSI     int    `yaml:"rssi"`
	Password string `yaml:"password"` // Empty for an open network
}

// SimulatorConfig configures a Simulator
type SimulatorConfig struct {
	Networks     []SimulatedNetwork
	ConnectDelay time.Duration // Time from Connect to the connect/disconnect event
	Address      string        // Host part of the URL reported once connected
}

// Simulator is an in-process Wi-Fi stack. Connection attempts succeed when
// the SSID is one of the configured networks and the password matches.
type Simulator struct {
	mu        sync.Mutex
	cfg       SimulatorConfig
	status    status
	lastScan  []protocol.AccessPoint
	listeners map[int]func(Event)
	nextID    int
	timer     *time.Timer
}

type status struct {
	value Status
	ssid  string
}

// NewSimulator creates a Simulator in StatusIdle
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{
		cfg:       cfg,
		listeners: make(map[int]func(Event)),
	}
}

// Status returns the current station status
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.value
}

// Scan lists the configured networks, strongest first
func (s *Simulator) Scan(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan cancelled: %w", err)
	}

	aps := make([]protocol.AccessPoint, 0, len(s.cfg.Networks))
	for _, n := range s.cfg.Networks {
		aps = append(aps, protocol.AccessPoint{
			SSID:         n.SSID,
			RSSI:         n.RSSI,
			AuthRequired: n.Password != "",
		})
	}
	sort.SliceStable(aps, func(i, j int) bool { return aps[i].RSSI > aps[j].RSSI })

	s.mu.Lock()
	s.lastScan = aps
	s.mu.Unlock()

	logging.Debug("Wi-Fi scan complete", zap.Int("networks", len(aps)))
	return nil
}

// AccessPoints returns a copy of the last scan result
func (s *Simulator) AccessPoints() []protocol.AccessPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.AccessPoint, len(s.lastScan))
	copy(out, s.lastScan)
	return out
}

// Connect starts a connection attempt. Any attempt in progress is abandoned.
func (s *Simulator) Connect(ssid, password string) error {
	if ssid == "" {
		s.mu.Lock()
		s.status = status{value: StatusInvalidConfig}
		s.mu.Unlock()
		return ErrEmptySSID
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.status = status{value: StatusConnecting, ssid: ssid}
	s.timer = time.AfterFunc(s.cfg.ConnectDelay, func() { s.complete(ssid, password) })
	s.mu.Unlock()

	logging.Info("Wi-Fi connection started", zap.String("ssid", ssid))
	return nil
}

func (s *Simulator) complete(ssid, password string) {
	s.mu.Lock()
	if s.status.value != StatusConnecting || s.status.ssid != ssid {
		// Superseded by a newer attempt
		s.mu.Unlock()
		return
	}

	ev := Event{SSID: ssid}
	net, found := s.lookup(ssid)
	switch {
	case !found:
		s.status.value = StatusInvalidConfig
		ev.Type = EventDisconnected
		ev.Reason = "network not found"
	case net.Password != password:
		s.status.value = StatusFailed
		ev.Type = EventDisconnected
		ev.Reason = "authentication failed"
	default:
		s.status.value = StatusConnected
		ev.Type = EventConnected
	}
	ev.Status = s.status.value
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	logging.Info("Wi-Fi connection finished",
		zap.String("ssid", ssid),
		zap.String("status", ev.Status.String()),
		zap.String("reason", ev.Reason),
	)
	for _, fn := range listeners {
		fn(ev)
	}
}

// Disconnect drops the current connection and notifies subscribers
func (s *Simulator) Disconnect(reason string) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	ssid := s.status.ssid
	s.status = status{value: StatusIdle}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	ev := Event{Type: EventDisconnected, SSID: ssid, Status: StatusIdle, Reason: reason}
	for _, fn := range listeners {
		fn(ev)
	}
}

// URL returns http://<address> while connected
func (s *Simulator) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.value != StatusConnected || s.cfg.Address == "" {
		return ""
	}
	return "http://" + s.cfg.Address
}

// Subscribe registers fn for connect and disconnect events
func (s *Simulator) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close stops any pending connection attempt
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// lookup must be called with mu held
func (s *Simulator) lookup(ssid string) (SimulatedNetwork, bool) {
	for _, n := range s.cfg.Networks {
		if n.SSID == ssid {
			return n, true
		}
	}
	return SimulatedNetwork{}, false
}

// snapshotListeners must be called with mu held
func (s *Simulator) snapshotListeners() []func(Event) {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

var _ Provider = (*Simulator)(nil)
