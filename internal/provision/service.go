package provision

import (
	"context"
	"sync"
	"time"

	"github.com/muurk/improv/internal/logging"
	"github.com/muurk/improv/internal/metrics"
	"github.com/muurk/improv/internal/network"
	"github.com/muurk/improv/internal/protocol"
	"go.uber.org/zap"
)

// DefaultScanTimeout bounds a scan triggered by a command
const DefaultScanTimeout = 5 * time.Second

// Session is a client connection the service answers commands on
type Session interface {
	// ID identifies the session in logs
	ID() string
	// Do runs fn with exclusive access to the session's dispatcher
	Do(fn func(d *protocol.Dispatcher))
}

// Service reacts to Improv commands and Wi-Fi events. It owns the
// provisioning state shared by every attached session.
type Service struct {
	mu          sync.Mutex
	state       protocol.State
	device      protocol.DeviceInfo
	network     network.Provider
	sessions    map[string]Session
	unsubscribe func()
	scanTimeout time.Duration
}

// NewService creates a Service in StateReadyAuthorized and subscribes to
// provider events
func NewService(provider network.Provider, device protocol.DeviceInfo) *Service {
	s := &Service{
		state:       protocol.StateReadyAuthorized,
		device:      device,
		network:     provider,
		sessions:    make(map[string]Session),
		scanTimeout: DefaultScanTimeout,
	}
	s.unsubscribe = provider.Subscribe(s.onNetworkEvent)
	metrics.SetProvisioningState(byte(s.state))
	return s
}

// Close stops listening for network events
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// State returns the current provisioning state
func (s *Service) State() protocol.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attach registers the command handlers on sess's dispatcher and adds it
// to the set of sessions that receive event-driven updates. The returned
// function detaches it again.
func (s *Service) Attach(sess Session) (detach func()) {
	sess.Do(func(d *protocol.Dispatcher) {
		for code := 0; code < 256; code++ {
			c := protocol.CommandCode(code)
			d.Register(c, func(cmd protocol.Command) bool {
				return s.HandleCommand(d, cmd)
			})
		}
	})

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	logging.Debug("Session attached", zap.String("session", sess.ID()))

	return func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
		logging.Debug("Session detached", zap.String("session", sess.ID()))
	}
}

// HandleCommand answers one command on d and reports whether every
// response was sent
func (s *Service) HandleCommand(d *protocol.Dispatcher, cmd protocol.Command) bool {
	logging.Info("Processing Improv command", zap.String("command", cmd.String()))

	var ok bool
	switch cmd.Code {
	case protocol.CommandWifiSettings:
		ok = s.handleWifiSettings(cmd)
	case protocol.CommandGetCurrentState:
		ok = s.handleGetCurrentState(d)
	case protocol.CommandGetDeviceInfo:
		logging.Info("Sending device info",
			zap.String("firmware", s.device.FirmwareName),
			zap.String("version", s.device.FirmwareVersion),
		)
		ok = d.SendDeviceInfo(s.device)
	case protocol.CommandGetWifiNetworks:
		ok = s.handleGetWifiNetworks(d)
	case protocol.CommandUnknown, protocol.CommandBadChecksum:
		logging.Warn("Invalid RPC received", zap.String("command", cmd.Code.String()))
		d.SendError(protocol.ErrorInvalidRPC)
	default:
		logging.Warn("Unknown RPC received", zap.String("command", cmd.Code.String()))
		d.SendError(protocol.ErrorUnknownRPC)
	}

	metrics.RecordCommand(commandLabel(cmd.Code), ok)
	return ok
}

// commandLabel folds undefined codes into one metric label
func commandLabel(code protocol.CommandCode) string {
	if !code.IsKnown() {
		return "Unrecognized"
	}
	return code.String()
}

func (s *Service) handleWifiSettings(cmd protocol.Command) bool {
	s.setState(protocol.StateProvisioning)

	logging.Info("Connecting to Wi-Fi", zap.String("ssid", cmd.SSID))
	if err := s.network.Connect(cmd.SSID, cmd.Password); err != nil {
		// The provider reports the failure as a status; GetCurrentState answers it
		logging.Warn("Wi-Fi connect rejected",
			zap.String("ssid", cmd.SSID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Service) handleGetCurrentState(d *protocol.Dispatcher) bool {
	status := s.network.Status()
	if status != network.StatusConnecting {
		s.scan()
	}

	switch status {
	case network.StatusConnecting:
		return d.SendCurrentState(s.State())

	case network.StatusInvalidConfig:
		s.setState(protocol.StateReadyAuthorized)
		logging.Warn("Signaling unable to connect")
		return d.SendError(protocol.ErrorUnableToConnect)

	case network.StatusFailed:
		s.setState(protocol.StateReadyAuthorized)
		logging.Warn("Signaling not authorized")
		return d.SendError(protocol.ErrorNotAuthorized)

	case network.StatusConnected:
		s.setState(protocol.StateProvisioned)
		url := s.network.URL()
		logging.Info("Signaling provisioned state", zap.String("url", url))
		ok := d.SendCurrentState(protocol.StateProvisioned)
		if !d.SendDeviceURL(protocol.CommandGetCurrentState, url) {
			ok = false
		}
		return ok

	default:
		return d.SendCurrentState(s.State())
	}
}

func (s *Service) handleGetWifiNetworks(d *protocol.Dispatcher) bool {
	aps := s.network.AccessPoints()
	if len(aps) == 0 {
		s.scan()
		aps = s.network.AccessPoints()
	}

	d.AllocateList(len(aps))
	for _, ap := range aps {
		d.AddEntry(ap.SSID, ap.RSSI, ap.AuthRequired)
	}

	logging.Info("Sending Wi-Fi network list", zap.Int("networks", d.ListCount()))
	return d.SendWifiList()
}

func (s *Service) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), s.scanTimeout)
	defer cancel()
	if err := s.network.Scan(ctx); err != nil {
		logging.Warn("Wi-Fi scan failed", zap.Error(err))
	}
}

func (s *Service) setState(state protocol.State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		logging.Info("Provisioning state changed",
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
	metrics.SetProvisioningState(byte(state))
}

// onNetworkEvent runs on the provider's goroutine
func (s *Service) onNetworkEvent(ev network.Event) {
	s.mu.Lock()
	provisioning := s.state == protocol.StateProvisioning
	sessions := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	switch ev.Type {
	case network.EventConnected:
		metrics.RecordProvisioningAttempt(ev.Status.String())
		if !provisioning {
			return
		}
		s.setState(protocol.StateProvisioned)
		url := s.network.URL()
		logging.Info("Provisioning succeeded",
			zap.String("ssid", ev.SSID),
			zap.String("url", url),
		)
		for _, sess := range sessions {
			sess.Do(func(d *protocol.Dispatcher) {
				d.SendCurrentState(protocol.StateProvisioned)
				d.SendDeviceURL(protocol.CommandWifiSettings, url)
			})
		}

	case network.EventDisconnected:
		metrics.RecordProvisioningAttempt(ev.Status.String())
		if !provisioning {
			return
		}
		s.setState(protocol.StateReadyAuthorized)
		logging.Warn("Provisioning failed",
			zap.String("ssid", ev.SSID),
			zap.String("reason", ev.Reason),
		)
		for _, sess := range sessions {
			sess.Do(func(d *protocol.Dispatcher) {
				d.SendError(protocol.ErrorUnableToConnect)
			})
		}
	}
}
