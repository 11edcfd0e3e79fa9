package stepper

import (
	"time"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"github.com/cjeanneret/JoyStep/internal/hw/gpio"
)

// A4988Config holds the wiring of a STEP/DIR driver (A4988, DRV8825).
type A4988Config struct {
	StepPin    int
	DirPin     int
	EnablePin  int           // ENABLE pin. 0 = not used. Active LOW (LOW=enabled).
	PulseWidth time.Duration // half-cycle of the STEP pulse. Total step = 2*PulseWidth.
}

// A4988 steps a bipolar motor through a STEP/DIR driver. It offers the same
// StepForward/StepBack/Stop surface as ULN2003 so either can sit behind a
// joystick axis.
type A4988 struct {
	gpio    gpio.Driver
	cfg     A4988Config
	delay   time.Duration
	enabled bool
}

// NewA4988 creates a STEP/DIR stepper.
// cfg.PulseWidth: if 0, defaults to 5µs (A4988 minimum is 1µs per half-cycle).
func NewA4988(g gpio.Driver, cfg A4988Config) (*A4988, error) {
	if err := g.SetupPin(cfg.StepPin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.SetupPin(cfg.DirPin, gpio.Output); err != nil {
		return nil, err
	}

	delay := cfg.PulseWidth
	if delay <= 0 {
		delay = 5 * time.Microsecond
	}

	s := &A4988{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	if cfg.EnablePin > 0 {
		if err := g.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
			return nil, err
		}
	}
	// Start stopped: no holding torque until the first step.
	if err := s.Stop(); err != nil {
		return nil, err
	}
	return s, nil
}

// StepForward emits one STEP pulse with DIR high.
func (s *A4988) StepForward() error {
	return s.step(gpio.High)
}

// StepBack emits one STEP pulse with DIR low.
func (s *A4988) StepBack() error {
	return s.step(gpio.Low)
}

func (s *A4988) step(dir gpio.Level) error {
	if err := s.enable(); err != nil {
		return err
	}
	if err := s.gpio.WritePin(s.cfg.DirPin, dir); err != nil {
		return err
	}
	debug.Trace("A4988: pulse on pin %d (dir=%v)", s.cfg.StepPin, dir)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

func (s *A4988) enable() error {
	if s.enabled || s.cfg.EnablePin <= 0 {
		return nil
	}
	if err := s.gpio.WritePin(s.cfg.EnablePin, gpio.Low); err != nil {
		return err
	}
	s.enabled = true
	return nil
}

// Stop holds STEP low and disables the driver (ENABLE=HIGH) so the motor
// freewheels. Without an enable pin only STEP is forced low.
func (s *A4988) Stop() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	if err := s.gpio.WritePin(s.cfg.EnablePin, gpio.High); err != nil {
		return err
	}
	s.enabled = false
	return nil
}
