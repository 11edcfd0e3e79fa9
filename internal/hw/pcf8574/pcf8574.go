// Package pcf8574 exposes a PCF8574 8-bit I2C port expander as a
// gpio.Driver, so stepper coils wired through an expander are used exactly
// like native pins. The chip itself is driven by periph's pcf857x driver.
package pcf8574

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"github.com/cjeanneret/JoyStep/internal/hw/gpio"
	"go.uber.org/multierr"
	periphgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/pcf857x"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the address with A0..A2 tied high (0x20 | 0b111).
	DefaultAddress uint16 = 0x27

	// NumPins is the number of I/O lines on the chip.
	NumPins = 8

	allLines periphgpio.GPIOValue = 1<<NumPins - 1
)

var (
	// ErrInvalidPin is returned for pin numbers outside 0..7.
	ErrInvalidPin = errors.New("pcf8574: invalid pin")

	// ErrClosed is returned for pin access after Close.
	ErrClosed = errors.New("pcf8574: device closed")
)

// Dev is a PCF8574 on an I2C bus.
type Dev struct {
	chip   *pcf857x.Dev
	lines  periphgpio.Group // pins 0..7, group bit n is pin n
	bus    i2c.BusCloser    // owned bus, closed by Close; nil when injected
	closed bool
}

// New wraps an already opened bus. All outputs are driven low so the
// attached coils start de-energized.
func New(bus i2c.Bus, address uint16) (*Dev, error) {
	chip, err := pcf857x.New(bus, address, pcf857x.PCF8574)
	if err != nil {
		return nil, fmt.Errorf("pcf8574: %w", err)
	}
	lines, err := chip.Group(0, 1, 2, 3, 4, 5, 6, 7)
	if err != nil {
		return nil, fmt.Errorf("pcf8574: %w", err)
	}
	dev := &Dev{chip: chip, lines: lines}

	// The chip powers up with every line high but the driver starts from a
	// zero shadow and skips unchanged writes. Write the power-up state first
	// so the all-low write reaches the bus.
	if err := lines.Out(allLines, allLines); err != nil {
		return nil, fmt.Errorf("init %s: %w", dev, err)
	}
	if err := lines.Out(0, allLines); err != nil {
		return nil, fmt.Errorf("init %s: %w", dev, err)
	}
	debug.Info("Port expander %s ready", dev)
	return dev, nil
}

// Open initializes periph host drivers, opens the named I2C bus ("" for the
// first available one) and returns the device on address.
func Open(busName string, address uint16) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("pcf8574: host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("pcf8574: open I2C bus %q: %w", busName, err)
	}
	dev, err := New(bus, address)
	if err != nil {
		return nil, multierr.Append(err, bus.Close())
	}
	dev.bus = bus
	return dev, nil
}

func (dev *Dev) String() string {
	return dev.chip.String()
}

func (dev *Dev) checkPin(pin int) error {
	if dev.closed {
		return ErrClosed
	}
	if pin < 0 || pin >= NumPins {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	return nil
}

// SetupPin only validates the pin number. Input pins are released High on
// the first ReadPin.
func (dev *Dev) SetupPin(pin int, mode gpio.PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return dev.checkPin(pin)
}

// WritePin sets one line. The driver skips the bus when the output byte
// does not change.
func (dev *Dev) WritePin(pin int, level gpio.Level) error {
	debug.GPIO("WritePin", pin, level)
	if err := dev.checkPin(pin); err != nil {
		return err
	}
	return dev.chip.Pins[pin].Out(periphgpio.Level(level))
}

// ReadPin releases the line High, then reads it back.
func (dev *Dev) ReadPin(pin int) (gpio.Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	if err := dev.checkPin(pin); err != nil {
		return gpio.Low, err
	}
	v, err := dev.lines.Read(periphgpio.GPIOValue(1) << pin)
	if err != nil {
		return gpio.Low, err
	}
	return gpio.Level(v != 0), nil
}

// Close drives every line low, halts the driver and closes the bus if Open
// created it.
func (dev *Dev) Close() error {
	if dev.closed {
		return nil
	}
	debug.Trace("GPIO Close (%s)", dev)
	err := dev.lines.Out(0, allLines)
	err = multierr.Append(err, dev.chip.Halt())
	dev.closed = true
	if dev.bus != nil {
		err = multierr.Append(err, dev.bus.Close())
	}
	return err
}
