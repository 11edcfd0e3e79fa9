package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cjeanneret/JoyStep/internal/logic/joystick"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 * 1024

// Output backends for motor coils.
const (
	OutputMock    = "mock"
	OutputRPIO    = "rpio"
	OutputPCF8574 = "pcf8574"
)

// Input backends for joystick samples.
const (
	InputVirtual = "virtual"
	InputADS1115 = "ads1115"
)

// Motor drivers.
const (
	DriverULN2003 = "uln2003"
	DriverA4988   = "a4988"
)

// Drive modes for ULN2003 motors.
const (
	DriveModeFull = "full"
	DriveModeHalf = "half"
)

const (
	maxBCMPin        = 27
	maxExpanderPin   = 7
	maxADCChannel    = 3
	fullStepsPerRev  = 2048 // 28BYJ-48 output shaft
	a4988StepsPerRev = 200
)

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int    `yaml:"debug_level"`  // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	TickMs     int    `yaml:"tick_ms"`      // loop tick quantum
	MinDelayMs int    `yaml:"min_delay_ms"` // fastest step delay (joystick at an extreme)
	MaxDelayMs int    `yaml:"max_delay_ms"` // slowest step delay (joystick just outside the dead zone)
	Output     string `yaml:"output"`       // mock | rpio | pcf8574
	Input      string `yaml:"input"`        // virtual | ads1115
}

// ExpanderConfig addresses the PCF8574 I2C port expander.
type ExpanderConfig struct {
	Bus     string `yaml:"bus"` // "" = first available bus
	Address uint16 `yaml:"address"`
}

// ADCConfig addresses the ADS1115 joystick converter.
type ADCConfig struct {
	Bus           string `yaml:"bus"`
	Address       uint16 `yaml:"address"`
	MaxMillivolts int    `yaml:"max_millivolts"` // full-scale range
}

// MotorConfig describes one axis: its driver wiring and joystick channel.
type MotorConfig struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"` // uln2003 | a4988

	// ULN2003: coil1..coil4 pins (BCM for rpio, P0..P7 for pcf8574).
	Pins      []int  `yaml:"pins"`
	DriveMode string `yaml:"drive_mode"` // full | half

	// A4988
	StepPin   int `yaml:"step_pin"`
	DirPin    int `yaml:"dir_pin"`
	EnablePin int `yaml:"enable_pin"` // 0 = not used. Active LOW.

	Channel     int                  `yaml:"channel"`
	StepsPerRev int                  `yaml:"steps_per_rev"`
	Joystick    joystick.Calibration `yaml:"joystick"`
}

// Config aggregates all application configuration.
type Config struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	Expander ExpanderConfig `yaml:"expander"`
	ADC      ADCConfig      `yaml:"adc"`
	Motors   []MotorConfig  `yaml:"motors"`
}

// ValidateConfigPath accepts only .yaml files directly inside a "configs"
// directory, without any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := &c.Defaults
	if d.TickMs <= 0 {
		d.TickMs = 1
	}
	if d.MinDelayMs <= 0 {
		d.MinDelayMs = joystick.DefaultDelayRange.MinMs
	}
	if d.MaxDelayMs <= 0 {
		d.MaxDelayMs = joystick.DefaultDelayRange.MaxMs
	}
	if d.Output == "" {
		d.Output = OutputMock
	}
	if d.Input == "" {
		d.Input = InputVirtual
	}
	if c.Expander.Address == 0 {
		c.Expander.Address = 0x27
	}
	if c.ADC.Address == 0 {
		c.ADC.Address = 0x48
	}
	if c.ADC.MaxMillivolts <= 0 {
		c.ADC.MaxMillivolts = 4096
	}

	for i := range c.Motors {
		m := &c.Motors[i]
		if m.Driver == "" {
			m.Driver = DriverULN2003
		}
		if m.Driver == DriverULN2003 && m.DriveMode == "" {
			m.DriveMode = DriveModeFull
		}
		if m.StepsPerRev <= 0 {
			m.StepsPerRev = defaultStepsPerRev(m.Driver, m.DriveMode)
		}
		if m.Joystick == (joystick.Calibration{}) {
			m.Joystick = joystick.Calibration1650
		}
	}
}

func defaultStepsPerRev(driver, mode string) int {
	switch {
	case driver == DriverA4988:
		return a4988StepsPerRev
	case mode == DriveModeHalf:
		return 2 * fullStepsPerRev
	default:
		return fullStepsPerRev
	}
}

// Validate reports every configuration problem found, combined.
func (c *Config) Validate() error {
	var err error
	d := c.Defaults

	if d.DebugLevel < 0 || d.DebugLevel > 4 {
		err = multierr.Append(err, fmt.Errorf("defaults.debug_level must be 0-4, got %d", d.DebugLevel))
	}
	if e := c.Delays().Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("defaults: %w", e))
	}
	switch d.Output {
	case OutputMock, OutputRPIO, OutputPCF8574:
	default:
		err = multierr.Append(err, fmt.Errorf("defaults.output %q must be mock, rpio or pcf8574", d.Output))
	}
	switch d.Input {
	case InputVirtual, InputADS1115:
	default:
		err = multierr.Append(err, fmt.Errorf("defaults.input %q must be virtual or ads1115", d.Input))
	}

	if len(c.Motors) == 0 {
		return multierr.Append(err, errors.New("motors: at least one motor is required"))
	}
	names := make(map[string]bool, len(c.Motors))
	for i := range c.Motors {
		m := &c.Motors[i]
		if m.Name == "" {
			err = multierr.Append(err, fmt.Errorf("motors[%d]: name is required", i))
		} else if names[m.Name] {
			err = multierr.Append(err, fmt.Errorf("motors[%d]: duplicate name %q", i, m.Name))
		}
		names[m.Name] = true
		if e := c.validateMotor(m); e != nil {
			err = multierr.Append(err, fmt.Errorf("motor %q: %w", m.Name, e))
		}
	}
	return err
}

func (c *Config) validateMotor(m *MotorConfig) error {
	var err error
	switch m.Driver {
	case DriverULN2003:
		if len(m.Pins) != 4 {
			err = multierr.Append(err, fmt.Errorf("uln2003 needs 4 pins, got %d", len(m.Pins)))
		}
		for _, p := range m.Pins {
			err = multierr.Append(err, c.validatePin(p))
		}
		if m.DriveMode != DriveModeFull && m.DriveMode != DriveModeHalf {
			err = multierr.Append(err, fmt.Errorf("drive_mode %q must be full or half", m.DriveMode))
		}
	case DriverA4988:
		if m.StepPin == 0 || m.DirPin == 0 {
			err = multierr.Append(err, errors.New("a4988 needs step_pin and dir_pin"))
		} else if m.StepPin == m.DirPin {
			err = multierr.Append(err, errors.New("a4988 step_pin and dir_pin must differ"))
		}
		for _, p := range []int{m.StepPin, m.DirPin, m.EnablePin} {
			err = multierr.Append(err, c.validatePin(p))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("driver %q must be uln2003 or a4988", m.Driver))
	}

	if m.Channel < 0 || (c.Defaults.Input == InputADS1115 && m.Channel > maxADCChannel) {
		err = multierr.Append(err, fmt.Errorf("channel %d out of range", m.Channel))
	}
	if e := m.Joystick.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("joystick: %w", e))
	}
	return err
}

func (c *Config) validatePin(p int) error {
	limit := maxBCMPin
	if c.Defaults.Output == OutputPCF8574 {
		limit = maxExpanderPin
	}
	if p < 0 || p > limit {
		return fmt.Errorf("pin %d out of range 0-%d for %s output", p, limit, c.Defaults.Output)
	}
	return nil
}

// Tick returns the loop tick quantum.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Defaults.TickMs) * time.Millisecond
}

// Delays returns the step delay range shared by all axes.
func (c *Config) Delays() joystick.DelayRange {
	return joystick.DelayRange{MinMs: c.Defaults.MinDelayMs, MaxMs: c.Defaults.MaxDelayMs}
}

// MockOutput reports whether coils are simulated.
func (c *Config) MockOutput() bool {
	return c.Defaults.Output == OutputMock
}

// Overrides holds command-line or web overrides. Zero values leave the
// configuration unchanged; DebugLevel uses -1 for "unset".
type Overrides struct {
	DriveMode  string `json:"drive_mode,omitempty"`
	DebugLevel int    `json:"debug_level"`
}

// ValidateOverrides rejects values the configuration would not accept.
func ValidateOverrides(o Overrides) error {
	if o.DriveMode != "" && o.DriveMode != DriveModeFull && o.DriveMode != DriveModeHalf {
		return fmt.Errorf("drive_mode %q must be full or half", o.DriveMode)
	}
	if o.DebugLevel < -1 || o.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be 0-4, got %d", o.DebugLevel)
	}
	return nil
}

// Apply writes non-zero overrides into c. A drive mode override resets
// steps_per_rev of ULN2003 motors to match the new mode.
func (c *Config) Apply(o Overrides) {
	if o.DriveMode != "" {
		for i := range c.Motors {
			m := &c.Motors[i]
			if m.Driver != DriverULN2003 || m.DriveMode == o.DriveMode {
				continue
			}
			m.DriveMode = o.DriveMode
			m.StepsPerRev = defaultStepsPerRev(m.Driver, m.DriveMode)
		}
	}
	if o.DebugLevel >= 0 {
		c.Defaults.DebugLevel = o.DebugLevel
	}
}
