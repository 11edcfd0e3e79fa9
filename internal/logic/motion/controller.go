package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"github.com/cjeanneret/JoyStep/internal/hw/adc"
	"github.com/cjeanneret/JoyStep/internal/logic/geometry"
	"github.com/cjeanneret/JoyStep/internal/logic/joystick"
	"go.uber.org/multierr"
)

// Motor is one open-loop stepper: ULN2003 phase sequencer or STEP/DIR driver.
type Motor interface {
	StepForward() error
	StepBack() error
	Stop() error
}

// indexer is implemented by motors that expose their phase table index.
type indexer interface {
	Index() int
}

// Sleeper is the loop's time source. Sleep blocks for d and cannot be
// interrupted.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps with time.Sleep.
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Axis ties one joystick channel to one motor.
type Axis struct {
	Name    string
	Channel int
	Decoder *joystick.Decoder
	Motor   Motor
	Steps   *geometry.StepsCalculator // optional, for angle reporting
}

// AxisStatus is a snapshot of one axis after the last tick.
type AxisStatus struct {
	Name       string           `json:"name"`
	Channel    int              `json:"channel"`
	Raw        int              `json:"raw"`
	Command    joystick.Command `json:"command"`
	ElapsedMs  int              `json:"elapsed_ms"`
	Position   int              `json:"position"` // signed steps since start
	AngleDeg   float64          `json:"angle_deg"`
	PhaseIndex int              `json:"phase_index"`
	Steps      uint64           `json:"steps"`
	Faults     uint64           `json:"faults"`
	LastFault  string           `json:"last_fault,omitempty"`
}

// Config holds the loop timing.
type Config struct {
	Tick    time.Duration // tick quantum, whole milliseconds, >= 1ms
	Sleeper Sleeper       // nil = RealSleeper
}

type axisState struct {
	Axis
	elapsed int // ms since last step
	last    joystick.Command
	status  AxisStatus
}

// Controller is the polling loop: each tick it samples every axis, decodes
// a command and steps the axis motor when its delay has elapsed.
//
// A hardware fault (ADC read, coil write) skips that axis for the tick and
// is logged and counted; the loop carries on.
type Controller struct {
	sampler adc.Sampler
	axes    []axisState
	tick    time.Duration
	tickMs  int
	sleeper Sleeper

	mu     sync.RWMutex
	status []AxisStatus
	ticks  uint64
}

// NewController creates the loop for axes sharing one sampler.
func NewController(sampler adc.Sampler, axes []Axis, cfg Config) (*Controller, error) {
	if sampler == nil {
		return nil, errors.New("motion: nil sampler")
	}
	if len(axes) == 0 {
		return nil, errors.New("motion: no axes")
	}
	if cfg.Tick < time.Millisecond || cfg.Tick%time.Millisecond != 0 {
		return nil, fmt.Errorf("motion: tick must be a whole number of milliseconds >= 1ms, got %v", cfg.Tick)
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = RealSleeper{}
	}

	c := &Controller{
		sampler: sampler,
		axes:    make([]axisState, len(axes)),
		tick:    cfg.Tick,
		tickMs:  int(cfg.Tick / time.Millisecond),
		sleeper: cfg.Sleeper,
		status:  make([]AxisStatus, len(axes)),
	}
	for i, a := range axes {
		if a.Decoder == nil || a.Motor == nil {
			return nil, fmt.Errorf("motion: axis %q needs a decoder and a motor", a.Name)
		}
		if a.Steps == nil {
			a.Steps = geometry.NewStepsCalculator(0)
		}
		c.axes[i] = axisState{
			Axis:   a,
			status: AxisStatus{Name: a.Name, Channel: a.Channel},
		}
		c.status[i] = c.axes[i].status
	}
	return c, nil
}

// Tick runs one loop iteration without pausing.
func (c *Controller) Tick() {
	for i := range c.axes {
		c.tickAxis(&c.axes[i])
	}
	for i := range c.axes {
		c.axes[i].elapsed += c.tickMs
	}
	c.publish()
}

func (c *Controller) tickAxis(a *axisState) {
	raw, err := c.sampler.Read(a.Channel)
	if err != nil {
		a.fault("read joystick", err)
		return
	}
	cmd := a.Decoder.Decode(raw)
	if cmd != a.last {
		debug.Command(a.Name, cmd, raw)
	}
	a.last = cmd
	a.status.Raw = raw
	a.status.Command = cmd

	switch cmd.Action {
	case joystick.Stop:
		if err := a.Motor.Stop(); err != nil {
			a.fault("stop motor", err)
		}
	case joystick.Forward, joystick.Backward:
		if a.elapsed <= cmd.DelayMs {
			return
		}
		delta := 1
		step := a.Motor.StepForward
		if cmd.Action == joystick.Backward {
			delta = -1
			step = a.Motor.StepBack
		}
		if err := step(); err != nil {
			a.fault("step motor", err)
			return
		}
		a.elapsed = 0
		a.status.Position += delta
		a.status.Steps++
		debug.Trace("Axis %s: %s step, position %d", a.Name, cmd.Action, a.status.Position)
	}
}

func (a *axisState) fault(op string, err error) {
	a.status.Faults++
	a.status.LastFault = fmt.Sprintf("%s: %v", op, err)
	debug.Warn("Axis %s: %s failed, skipping this tick: %v", a.Name, op, err)
}

func (c *Controller) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.axes {
		a := &c.axes[i]
		a.status.ElapsedMs = a.elapsed
		a.status.AngleDeg = a.Steps.AngleFromSteps(a.status.Position)
		if ix, ok := a.Motor.(indexer); ok {
			a.status.PhaseIndex = ix.Index()
		}
		c.status[i] = a.status
	}
	c.ticks++
}

// Status returns a copy of the per-axis state after the last tick. It is
// safe to call from another goroutine while Run is active.
func (c *Controller) Status() []AxisStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AxisStatus, len(c.status))
	copy(out, c.status)
	return out
}

// Ticks returns the number of completed iterations.
func (c *Controller) Ticks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

// Axes returns the configured axes.
func (c *Controller) Axes() []Axis {
	axes := make([]Axis, len(c.axes))
	for i := range c.axes {
		axes[i] = c.axes[i].Axis
	}
	return axes
}

// Run loops Tick and a fixed pause until ctx is done, then stops every
// motor. The pause is not interrupted; ctx is checked between iterations.
func (c *Controller) Run(ctx context.Context) error {
	debug.Info("Control loop started: %d axes, tick %v", len(c.axes), c.tick)
	for {
		select {
		case <-ctx.Done():
			if err := c.StopAll(); err != nil {
				debug.Error(fmt.Errorf("stop motors: %w", err))
			}
			debug.Info("Control loop stopped after %d ticks", c.Ticks())
			return ctx.Err()
		default:
		}
		c.Tick()
		c.sleeper.Sleep(c.tick)
	}
}

// StopAll de-energizes every motor.
func (c *Controller) StopAll() error {
	var err error
	for i := range c.axes {
		if e := c.axes[i].Motor.Stop(); e != nil {
			err = multierr.Append(err, fmt.Errorf("axis %s: %w", c.axes[i].Name, e))
		}
	}
	return err
}
