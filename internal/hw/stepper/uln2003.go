package stepper

import (
	"fmt"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"github.com/cjeanneret/JoyStep/internal/hw/gpio"
	"go.uber.org/multierr"
)

// ULN2003 sequences the four coils of a unipolar stepper (28BYJ-48 on a
// ULN2003 board) through a phase table, one entry per step. It is open-loop:
// the index is the only position it knows.
//
// Each step writes the pattern at the current index and only then moves the
// index. The pattern on the coils after a step is therefore the one of the
// index before the step, in both directions.
type ULN2003 struct {
	coils []gpio.OutputLine
	table PhaseTable
	index int
}

// NewULN2003 creates a sequencer on coils (coil1..coil4) and drives every
// coil low so the motor starts stopped.
func NewULN2003(coils []gpio.OutputLine, table PhaseTable) (*ULN2003, error) {
	if len(coils) != NumCoils {
		return nil, fmt.Errorf("stepper: need %d coil outputs, got %d", NumCoils, len(coils))
	}
	for i, c := range coils {
		if c == nil {
			return nil, fmt.Errorf("stepper: coil %d output is nil", i+1)
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	s := &ULN2003{
		coils: coils,
		table: table,
	}
	if err := s.Stop(); err != nil {
		return nil, fmt.Errorf("stepper: initial stop: %w", err)
	}
	return s, nil
}

// Index returns the current position in the phase table.
func (s *ULN2003) Index() int {
	return s.index
}

// Table returns the phase table in use.
func (s *ULN2003) Table() PhaseTable {
	return s.table
}

// StepForward writes table[index] to the coils, then advances the index.
func (s *ULN2003) StepForward() error {
	if err := s.apply(s.table[s.index]); err != nil {
		return err
	}
	s.index = (s.index + 1) % len(s.table)
	return nil
}

// StepBack writes table[index] to the coils, then moves the index back.
func (s *ULN2003) StepBack() error {
	if err := s.apply(s.table[s.index]); err != nil {
		return err
	}
	s.index = (s.index - 1 + len(s.table)) % len(s.table)
	return nil
}

// Step dispatches to StepForward or StepBack.
func (s *ULN2003) Step(dir Direction) error {
	if dir == Backward {
		return s.StepBack()
	}
	return s.StepForward()
}

// Stop de-energizes every coil. The index is kept so stepping resumes
// where it left off.
func (s *ULN2003) Stop() error {
	var err error
	for _, c := range s.coils {
		err = multierr.Append(err, c.Low())
	}
	return err
}

// apply writes one pattern. On a write error every coil is driven low, so
// the pins never hold a mix of two patterns, and the caller must not move
// the index.
func (s *ULN2003) apply(pattern uint8) error {
	debug.Trace("ULN2003: index=%d pattern=%04b", s.index, pattern)
	for i, c := range s.coils {
		var err error
		if Coil(pattern, i) {
			err = c.High()
		} else {
			err = c.Low()
		}
		if err != nil {
			return multierr.Append(fmt.Errorf("stepper: coil %d: %w", i+1, err), s.Stop())
		}
	}
	return nil
}
