package adc

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cjeanneret/JoyStep/internal/debug"
)

// ErrUnknownChannel is returned when reading a channel that was never
// configured.
var ErrUnknownChannel = errors.New("adc: unknown channel")

// Sampler reads one raw analog sample from a channel. Errors are transient
// hardware faults (bus errors); callers may retry on the next iteration.
type Sampler interface {
	Read(channel int) (int, error)
}

// Virtual is a Sampler whose values are set in software, e.g. from the web
// UI when no joystick hardware is attached.
type Virtual struct {
	mu     sync.RWMutex
	values map[int]int
}

// NewVirtual creates a virtual joystick with initial (rest) values keyed by
// channel.
func NewVirtual(initial map[int]int) *Virtual {
	v := &Virtual{values: make(map[int]int, len(initial))}
	for ch, val := range initial {
		v.values[ch] = val
	}
	debug.Info("Using VIRTUAL joystick on channels %v", v.Channels())
	return v
}

func (v *Virtual) Read(channel int) (int, error) {
	v.mu.RLock()
	val, ok := v.values[channel]
	v.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	debug.Sample(channel, val)
	return val, nil
}

// Set moves the virtual stick on a configured channel.
func (v *Virtual) Set(channel, value int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.values[channel]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	v.values[channel] = value
	return nil
}

// Channels returns the configured channels in ascending order.
func (v *Virtual) Channels() []int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	chs := make([]int, 0, len(v.values))
	for ch := range v.values {
		chs = append(chs, ch)
	}
	sort.Ints(chs)
	return chs
}
