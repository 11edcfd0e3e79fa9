package gpio

import (
	"fmt"

	"github.com/cjeanneret/JoyStep/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in native Raspberry Pi pins, an I2C port
// expander, or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// OutputLine is a single digital output line, e.g. one coil of a stepper.
type OutputLine interface {
	High() error
	Low() error
}

// OutputPin binds a pin number of a Driver into an OutputLine.
type OutputPin struct {
	drv Driver
	pin int
}

// NewOutputPin configures pin as output on d and returns it as an OutputLine.
func NewOutputPin(d Driver, pin int) (*OutputPin, error) {
	if err := d.SetupPin(pin, Output); err != nil {
		return nil, fmt.Errorf("setup output pin %d: %w", pin, err)
	}
	return &OutputPin{drv: d, pin: pin}, nil
}

// OutputPins binds several pins of the same driver, in order.
func OutputPins(d Driver, pins ...int) ([]OutputLine, error) {
	outs := make([]OutputLine, 0, len(pins))
	for _, pin := range pins {
		p, err := NewOutputPin(d, pin)
		if err != nil {
			return nil, err
		}
		outs = append(outs, p)
	}
	return outs, nil
}

// Pin returns the pin number on the underlying driver.
func (p *OutputPin) Pin() int {
	return p.pin
}

func (p *OutputPin) High() error {
	return p.drv.WritePin(p.pin, High)
}

func (p *OutputPin) Low() error {
	return p.drv.WritePin(p.pin, Low)
}

// MockDriver is a test implementation that simply logs actions.
// Used for development on PC or testing.
type MockDriver struct{}

// NewDriver creates a native GPIO driver.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return Low, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
