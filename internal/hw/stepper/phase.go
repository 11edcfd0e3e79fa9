package stepper

import (
	"errors"
	"fmt"
)

// NumCoils is the number of coil outputs of a unipolar stepper on a ULN2003.
const NumCoils = 4

// PhaseTable is one full electrical cycle of coil patterns. Each entry holds
// four bits in coil order coil1..coil4, coil1 being the most significant bit
// (0b1010 energizes coil1 and coil3).
type PhaseTable []uint8

var (
	// FullStepTable energizes two adjacent coils per step (4 steps/cycle).
	FullStepTable = PhaseTable{0b1010, 0b0110, 0b0101, 0b1001}

	// HalfStepTable interleaves single- and double-coil steps for twice the
	// angular resolution (8 steps/cycle).
	HalfStepTable = PhaseTable{0b0001, 0b0011, 0b0010, 0b0110, 0b0100, 0b1100, 0b1000, 0b1001}
)

// ErrInvalidTable is returned for empty tables or entries wider than 4 bits.
var ErrInvalidTable = errors.New("stepper: invalid phase table")

// Validate checks that the table can drive four coils.
func (t PhaseTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTable)
	}
	for i, p := range t {
		if p > 0b1111 {
			return fmt.Errorf("%w: entry %d (%#b) uses more than %d coils", ErrInvalidTable, i, p, NumCoils)
		}
	}
	return nil
}

// Coil reports whether coil c (0..3) is energized in pattern p.
func Coil(p uint8, c int) bool {
	return p&(1<<(NumCoils-1-c)) != 0
}

// DriveMode selects a phase table.
type DriveMode string

const (
	FullStep DriveMode = "full"
	HalfStep DriveMode = "half"
)

// Table returns the phase table of the drive mode.
func (m DriveMode) Table() (PhaseTable, error) {
	switch m {
	case FullStep:
		return FullStepTable, nil
	case HalfStep:
		return HalfStepTable, nil
	default:
		return nil, fmt.Errorf("unknown drive mode %q (want %q or %q)", m, FullStep, HalfStep)
	}
}

// Direction is the rotation sense of one step.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Inverted returns the opposite direction.
func (d Direction) Inverted() Direction {
	if d == Forward {
		return Backward
	}
	return Forward
}
