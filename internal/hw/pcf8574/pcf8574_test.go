package pcf8574

import (
	"errors"
	"testing"

	"github.com/cjeanneret/JoyStep/internal/hw/gpio"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// initOps is the bus traffic of New: sync with the power-up state, then
// drive every line low.
func initOps(addr uint16) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{0xFF}},
		{Addr: addr, W: []byte{0x00}},
	}
}

func newPlayback(ops ...i2ctest.IO) *i2ctest.Playback {
	return &i2ctest.Playback{
		Ops:       append(initOps(DefaultAddress), ops...),
		DontPanic: true,
	}
}

func newTestDev(t *testing.T, bus *i2ctest.Playback) *Dev {
	t.Helper()
	dev, err := New(bus, DefaultAddress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dev
}

func TestNew_DrivesAllLow(t *testing.T) {
	bus := newPlayback()
	newTestDev(t, bus)
	if err := bus.Close(); err != nil {
		t.Errorf("init traffic: %v", err)
	}
}

func TestNew_InitFailure(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	if _, err := New(bus, DefaultAddress); err == nil {
		t.Fatal("expected error when init write fails")
	}
}

func TestWritePin_SetsAndClearsBits(t *testing.T) {
	bus := newPlayback(
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x80}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x90}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x10}},
	)
	dev := newTestDev(t, bus)

	for _, w := range []struct {
		pin   int
		level gpio.Level
	}{{7, gpio.High}, {4, gpio.High}, {7, gpio.Low}} {
		if err := dev.WritePin(w.pin, w.level); err != nil {
			t.Fatalf("WritePin(%d, %v): %v", w.pin, w.level, err)
		}
	}
	if err := bus.Close(); err != nil {
		t.Errorf("written bytes: %v", err)
	}
}

func TestWritePin_UnchangedSkipsBus(t *testing.T) {
	bus := newPlayback()
	dev := newTestDev(t, bus)

	for i := 0; i < 2; i++ {
		if err := dev.WritePin(3, gpio.Low); err != nil {
			t.Errorf("WritePin: %v", err)
		}
	}
	if err := bus.Close(); err != nil {
		t.Errorf("writing an unchanged level should not touch the bus: %v", err)
	}
}

func TestWritePin_InvalidPin(t *testing.T) {
	dev := newTestDev(t, newPlayback())

	for _, pin := range []int{-1, 8, 15} {
		if err := dev.WritePin(pin, gpio.High); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("WritePin(%d) error = %v, want ErrInvalidPin", pin, err)
		}
		if err := dev.SetupPin(pin, gpio.Output); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("SetupPin(%d) error = %v, want ErrInvalidPin", pin, err)
		}
	}
}

func TestWritePin_BusErrorIsRetried(t *testing.T) {
	bus := newPlayback()
	dev := newTestDev(t, bus)

	if err := dev.WritePin(0, gpio.High); err == nil {
		t.Fatal("expected bus error")
	}

	// The failed byte was not recorded as written, so the retry reaches the bus.
	bus.Ops = append(bus.Ops, i2ctest.IO{Addr: DefaultAddress, W: []byte{0x01}})
	if err := dev.WritePin(0, gpio.High); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("retry traffic: %v", err)
	}
}

func TestReadPin(t *testing.T) {
	bus := newPlayback(
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x02}},
		i2ctest.IO{Addr: DefaultAddress, R: []byte{0x02}},
	)
	dev := newTestDev(t, bus)

	lvl, err := dev.ReadPin(1)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if lvl != gpio.High {
		t.Errorf("ReadPin(1) = %v, want HIGH", lvl)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("unconsumed playback ops: %v", err)
	}
}

func TestReadPin_BusError(t *testing.T) {
	dev := newTestDev(t, newPlayback())
	if _, err := dev.ReadPin(2); err == nil {
		t.Error("expected bus error")
	}
}

func TestClose_DrivesAllLow(t *testing.T) {
	bus := newPlayback(
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x20}},
		i2ctest.IO{Addr: DefaultAddress, W: []byte{0x00}},
	)
	dev := newTestDev(t, bus)
	if err := dev.WritePin(5, gpio.High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("close traffic: %v", err)
	}

	if err := dev.WritePin(5, gpio.High); !errors.Is(err, ErrClosed) {
		t.Errorf("WritePin after Close = %v, want ErrClosed", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDev_String(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initOps(0x20), DontPanic: true}
	dev, err := New(bus, 0x20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dev.String() != "PCF8574_20" {
		t.Errorf("String() = %q", dev.String())
	}
}
