// Package metrics exposes Prometheus collectors for the Improv daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "improv_build_info",
			Help: "Build information for the Improv daemon",
		},
		[]string{"version", "commit"},
	)

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "improv_frames_received_total",
			Help: "Valid RPC frames received, by transport",
		},
		[]string{"transport"},
	)

	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "improv_frame_errors_total",
			Help: "Frames rejected before dispatch, by transport and error",
		},
		[]string{"transport", "error"},
	)

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "improv_frames_sent_total",
			Help: "Packets written to clients, by transport",
		},
		[]string{"transport"},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "improv_commands_total",
			Help: "Dispatched RPC commands, by command and result",
		},
		[]string{"command", "result"},
	)

	provisioningState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "improv_provisioning_state",
			Help: "Current provisioning state code (2 ready, 3 provisioning, 4 provisioned)",
		},
	)

	provisioningAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "improv_provisioning_attempts_total",
			Help: "Wi-Fi connection attempts, by outcome",
		},
		[]string{"result"},
	)

	sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "improv_sessions",
			Help: "Open client sessions, by transport",
		},
		[]string{"transport"},
	)
)

// Register registers every Improv collector with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		buildInfo,
		framesReceived,
		frameErrors,
		framesSent,
		commands,
		provisioningState,
		provisioningAttempts,
		sessions,
	)
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// FrameReceived counts one valid RPC frame.
func FrameReceived(transport string) { framesReceived.WithLabelValues(transport).Inc() }

// FrameError counts a rejected frame; kind is a short error name such as "checksum".
func FrameError(transport, kind string) { frameErrors.WithLabelValues(transport, kind).Inc() }

// FrameSent counts one packet written to a client.
func FrameSent(transport string) { framesSent.WithLabelValues(transport).Inc() }

// RecordCommand counts a dispatched command and whether its handler succeeded.
func RecordCommand(command string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	commands.WithLabelValues(command, result).Inc()
}

// SetProvisioningState records the current state code.
func SetProvisioningState(code byte) { provisioningState.Set(float64(code)) }

// RecordProvisioningAttempt counts a connection outcome such as "connected" or "failed".
func RecordProvisioningAttempt(result string) { provisioningAttempts.WithLabelValues(result).Inc() }

// SessionOpened increments the open session gauge.
func SessionOpened(transport string) { sessions.WithLabelValues(transport).Inc() }

// SessionClosed decrements the open session gauge.
func SessionClosed(transport string) { sessions.WithLabelValues(transport).Dec() }
