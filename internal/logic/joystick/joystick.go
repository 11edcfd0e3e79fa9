// Package joystick turns raw analog joystick samples into stepper motion
// commands: a dead zone around center maps to Stop, deflection maps linearly
// to the delay between steps (more deflection, shorter delay).
package joystick

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCalibration reports inconsistent calibration constants.
	ErrInvalidCalibration = errors.New("invalid joystick calibration")
	// ErrInvalidDelayRange reports an unusable step delay range.
	ErrInvalidDelayRange = errors.New("invalid step delay range")
)

// ConfigError is returned by NewDecoder. It is a startup error: the
// calibration has to be fixed, samples are never coerced around it.
type ConfigError struct {
	Field  string
	Reason string
	Err    error // ErrInvalidCalibration or ErrInvalidDelayRange
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Calibration describes one physical joystick axis in raw sample units.
// These values are measured per unit, not derived from a datasheet.
type Calibration struct {
	Center    int `yaml:"center" json:"center"`
	Threshold int `yaml:"threshold" json:"threshold"` // dead zone half-width around Center
	Min       int `yaml:"min" json:"min"`
	Max       int `yaml:"max" json:"max"`
}

// Calibrations measured on the two joysticks used during development.
var (
	// Calibration1650 is the 1..2801 stick with a narrow dead zone.
	Calibration1650 = Calibration{Center: 1650, Threshold: 30, Min: 1, Max: 2801}
	// Calibration1620 is the 0..2081 stick (rest at 1620-1690).
	Calibration1620 = Calibration{Center: 1620, Threshold: 50, Min: 0, Max: 2081}
)

// DelayRange bounds the delay between two steps, in milliseconds.
type DelayRange struct {
	MinMs int `yaml:"min_ms" json:"min_ms"` // full deflection (fastest)
	MaxMs int `yaml:"max_ms" json:"max_ms"` // edge of the dead zone (slowest)
}

// DefaultDelayRange is 1ms (fastest) to 20ms (slowest).
var DefaultDelayRange = DelayRange{MinMs: 1, MaxMs: 20}

// Validate checks the calibration.
func (c Calibration) Validate() error {
	bad := func(field, reason string) error {
		return &ConfigError{Field: field, Reason: reason, Err: ErrInvalidCalibration}
	}
	switch {
	case c.Min >= c.Max:
		return bad("min", fmt.Sprintf("(%d) must be below max (%d)", c.Min, c.Max))
	case c.Center <= c.Min || c.Center >= c.Max:
		return bad("center", fmt.Sprintf("(%d) must be strictly inside [%d, %d]", c.Center, c.Min, c.Max))
	case c.Threshold < 0:
		return bad("threshold", fmt.Sprintf("(%d) must not be negative", c.Threshold))
	case c.Center-c.Threshold < c.Min || c.Center+c.Threshold > c.Max:
		return bad("threshold", fmt.Sprintf("(%d) puts the dead zone outside [%d, %d]", c.Threshold, c.Min, c.Max))
	}
	return nil
}

// Validate checks the delay range.
func (d DelayRange) Validate() error {
	switch {
	case d.MinMs < 1:
		return &ConfigError{Field: "min_delay_ms", Reason: fmt.Sprintf("(%d) must be at least 1", d.MinMs), Err: ErrInvalidDelayRange}
	case d.MaxMs < d.MinMs:
		return &ConfigError{Field: "max_delay_ms", Reason: fmt.Sprintf("(%d) must not be below min_delay_ms (%d)", d.MaxMs, d.MinMs), Err: ErrInvalidDelayRange}
	}
	return nil
}

// Decoder maps samples of one axis to commands.
type Decoder struct {
	cal    Calibration
	delays DelayRange
}

// NewDecoder validates the calibration and delay range.
func NewDecoder(cal Calibration, delays DelayRange) (*Decoder, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if err := delays.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{cal: cal, delays: delays}, nil
}

// Calibration returns the axis calibration.
func (d *Decoder) Calibration() Calibration {
	return d.cal
}

// Delays returns the step delay range.
func (d *Decoder) Delays() DelayRange {
	return d.delays
}

// Decode classifies one raw sample. Samples outside [Min, Max] are clamped
// first, so a saturated stick reads as full deflection.
func (d *Decoder) Decode(raw int) Command {
	c := d.cal
	v := raw
	if v < c.Min {
		v = c.Min
	}
	if v > c.Max {
		v = c.Max
	}

	switch {
	case v >= c.Center-c.Threshold && v <= c.Center+c.Threshold:
		return Command{Action: Stop}
	case v <= c.Center:
		// Min is full deflection: shortest delay.
		return Command{Action: Forward, DelayMs: d.scale(v-c.Min, c.Center-c.Min)}
	default:
		// Max is full deflection: shortest delay.
		return Command{Action: Backward, DelayMs: d.scale(c.Max-v, c.Max-c.Center)}
	}
}

// scale maps dist in [0, span] onto [MinMs, MaxMs].
func (d *Decoder) scale(dist, span int) int {
	delay := d.delays.MinMs + dist*(d.delays.MaxMs-d.delays.MinMs)/span
	if delay < d.delays.MinMs {
		delay = d.delays.MinMs
	}
	return delay
}
