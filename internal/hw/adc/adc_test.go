package adc

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

func TestVirtual_ReadAndSet(t *testing.T) {
	v := NewVirtual(map[int]int{0: 1650, 1: 1620})

	got, err := v.Read(0)
	if err != nil || got != 1650 {
		t.Fatalf("Read(0) = %d, %v; want 1650", got, err)
	}

	if err := v.Set(1, 2081); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ = v.Read(1)
	if got != 2081 {
		t.Errorf("Read(1) after Set = %d, want 2081", got)
	}
}

func TestVirtual_UnknownChannel(t *testing.T) {
	v := NewVirtual(map[int]int{0: 0})

	if _, err := v.Read(3); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Read(3) error = %v, want ErrUnknownChannel", err)
	}
	if err := v.Set(3, 10); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Set(3) error = %v, want ErrUnknownChannel", err)
	}
}

func TestVirtual_Channels(t *testing.T) {
	v := NewVirtual(map[int]int{2: 0, 0: 0, 1: 0})
	chs := v.Channels()
	want := []int{0, 1, 2}
	if len(chs) != len(want) {
		t.Fatalf("Channels() = %v, want %v", chs, want)
	}
	for i := range want {
		if chs[i] != want[i] {
			t.Errorf("Channels()[%d] = %d, want %d", i, chs[i], want[i])
		}
	}
}

type fakePin struct {
	sample analog.Sample
	err    error
	halted bool
}

func (p *fakePin) Read() (analog.Sample, error) { return p.sample, p.err }

func (p *fakePin) Halt() error {
	p.halted = true
	return nil
}

func TestADS1115Sampler_ReadMillivolts(t *testing.T) {
	p := &fakePin{sample: analog.Sample{V: 1620 * physic.MilliVolt, Raw: 12960}}
	s := &ADS1115Sampler{pins: map[int]pinReader{0: p}}

	got, err := s.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 1620 {
		t.Errorf("Read(0) = %d, want 1620", got)
	}
}

func TestADS1115Sampler_ReadError(t *testing.T) {
	busErr := errors.New("i2c nack")
	s := &ADS1115Sampler{pins: map[int]pinReader{1: &fakePin{err: busErr}}}

	if _, err := s.Read(1); !errors.Is(err, busErr) {
		t.Errorf("Read error = %v, want wrapped bus error", err)
	}
	if _, err := s.Read(2); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Read(2) error = %v, want ErrUnknownChannel", err)
	}
}

func TestADS1115Sampler_CloseHaltsPins(t *testing.T) {
	p0, p1 := &fakePin{}, &fakePin{}
	s := &ADS1115Sampler{pins: map[int]pinReader{0: p0, 1: p1}}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !p0.halted || !p1.halted {
		t.Error("Close should halt every pin")
	}
}
