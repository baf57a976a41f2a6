package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/muurk/improv/internal/logging"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrPortClosed is reported when the serial port reaches EOF
var ErrPortClosed = errors.New("serial port closed")

// SerialConfig configures the serial transport
type SerialConfig struct {
	Port        string
	BaudRate    int
	IdleTimeout time.Duration // Also used as the port read timeout
	MaxBackoff  time.Duration // Upper bound between reopen attempts
}

// Serial serves Improv over a serial port, reopening it with exponential
// backoff when it disappears (USB adapters unplugged, device reset).
type Serial struct {
	cfg     SerialConfig
	app     Attacher
	capture *Capture
	open    func(name string, mode *serial.Mode) (serial.Port, error)
}

// NewSerial creates a serial transport. capture may be nil.
func NewSerial(cfg SerialConfig, app Attacher, capture *Capture) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = time.Minute
	}
	return &Serial{
		cfg:     cfg,
		app:     app,
		capture: capture,
		open:    serial.Open,
	}
}

// Run serves the port until ctx is cancelled
func (t *Serial) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = t.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	op := func() error {
		if ctx.Err() != nil {
			return nil
		}
		port, err := t.openPort()
		if err != nil {
			return err
		}
		b.Reset()

		err = t.serve(ctx, port)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return ErrPortClosed
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		logging.Warn("Serial port unavailable, retrying",
			zap.String("port", t.cfg.Port),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	// MaxElapsedTime is disabled, so a Stop here means the deadline falls
	// before the next attempt. Keep the port slot until it expires.
	if _, ok := ctx.Deadline(); ok {
		<-ctx.Done()
		return nil
	}
	return err
}

func (t *Serial) openPort() (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: t.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := t.open(t.cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", t.cfg.Port, err)
	}
	if err := port.SetReadTimeout(t.cfg.IdleTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", t.cfg.Port, err)
	}

	logging.Info("Serial port opened",
		zap.String("port", t.cfg.Port),
		zap.Int("baud", t.cfg.BaudRate),
	)
	return port, nil
}

func (t *Serial) serve(ctx context.Context, port serial.Port) error {
	var once sync.Once
	closePort := func() { once.Do(func() { _ = port.Close() }) }
	defer closePort()

	stop := context.AfterFunc(ctx, closePort)
	defer stop()

	opts := []SessionOption{WithIdleTimeout(t.cfg.IdleTimeout)}
	if t.capture != nil {
		opts = append(opts, WithCapture(t.capture))
	}
	return Serve(ctx, "serial", t.cfg.Port, port, t.app, opts...)
}
