package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"go.uber.org/multierr"
)

// MoveSteps drives m by a signed number of steps with delay between steps,
// then de-energizes it. Positive steps move forward. ctx is checked before
// each step; on cancellation the motor is stopped and ctx.Err returned.
func MoveSteps(ctx context.Context, m Motor, steps int, delay time.Duration, s Sleeper) error {
	if s == nil {
		s = RealSleeper{}
	}
	step := m.StepForward
	n := steps
	if steps < 0 {
		step = m.StepBack
		n = -steps
	}
	debug.Verbose("MoveSteps: %d steps, delay %v", steps, delay)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return multierr.Append(err, m.Stop())
		}
		if err := step(); err != nil {
			return multierr.Append(fmt.Errorf("step %d/%d: %w", i+1, n, err), m.Stop())
		}
		s.Sleep(delay)
	}
	return m.Stop()
}
