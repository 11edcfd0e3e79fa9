package adc

import (
	"fmt"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// DefaultAddress is the ADS1115 address with ADDR tied to GND.
const DefaultAddress uint16 = 0x48

// dataRate is the fastest single-shot rate of the ADS1115; one conversion
// takes about 1.2ms.
const dataRate = 860 * physic.Hertz

var singleEnded = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// pinReader is the part of analog.PinADC the sampler needs.
type pinReader interface {
	Read() (analog.Sample, error)
	Halt() error
}

// ADS1115Sampler reads joystick axes from single-ended ADS1115 inputs and
// reports them in millivolts, the unit joystick calibrations are taken in.
type ADS1115Sampler struct {
	pins map[int]pinReader
	bus  i2c.BusCloser
}

// ADS1115Config selects the bus, address and full-scale range.
type ADS1115Config struct {
	Bus           string
	Address       uint16
	MaxMillivolts int
	Channels      []int
}

// OpenADS1115 initializes periph, opens the I2C bus and binds one ADC pin
// per requested channel (0..3).
func OpenADS1115(cfg ADS1115Config) (*ADS1115Sampler, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("ads1115: host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("ads1115: open I2C bus %q: %w", cfg.Bus, err)
	}

	s, err := newADS1115(bus, cfg)
	if err != nil {
		return nil, multierr.Append(err, bus.Close())
	}
	s.bus = bus
	debug.Info("ADS1115 at %#x ready on channels %v", cfg.Address, cfg.Channels)
	return s, nil
}

func newADS1115(bus i2c.Bus, cfg ADS1115Config) (*ADS1115Sampler, error) {
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: addr})
	if err != nil {
		return nil, fmt.Errorf("ads1115: %w", err)
	}

	maxV := physic.ElectricPotential(cfg.MaxMillivolts) * physic.MilliVolt
	pins := make(map[int]pinReader, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if ch < 0 || ch >= len(singleEnded) {
			return nil, fmt.Errorf("%w: %d (ADS1115 has inputs 0..3)", ErrUnknownChannel, ch)
		}
		p, err := dev.PinForChannel(singleEnded[ch], maxV, dataRate, ads1x15.BestQuality)
		if err != nil {
			return nil, fmt.Errorf("ads1115: channel %d: %w", ch, err)
		}
		pins[ch] = p
	}
	return &ADS1115Sampler{pins: pins}, nil
}

func (s *ADS1115Sampler) Read(channel int) (int, error) {
	p, ok := s.pins[channel]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	sample, err := p.Read()
	if err != nil {
		return 0, fmt.Errorf("ads1115: read channel %d: %w", channel, err)
	}
	mv := int(sample.V / physic.MilliVolt)
	debug.Sample(channel, mv)
	return mv, nil
}

// Close halts every ADC pin and closes the bus.
func (s *ADS1115Sampler) Close() error {
	var err error
	for _, p := range s.pins {
		err = multierr.Append(err, p.Halt())
	}
	if s.bus != nil {
		err = multierr.Append(err, s.bus.Close())
	}
	return err
}
