package geometry

// StepsCalculator converts between open-loop step counts and shaft angles
// for one motor.
type StepsCalculator struct {
	stepsPerDegree float64
}

// NewStepsCalculator creates a step calculator for a motor doing stepsPerRev
// steps per output shaft revolution (28BYJ-48: 2048 full steps, 4096 half
// steps). A non-positive value disables angle reporting.
func NewStepsCalculator(stepsPerRev int) *StepsCalculator {
	if stepsPerRev <= 0 {
		return &StepsCalculator{}
	}
	return &StepsCalculator{
		stepsPerDegree: float64(stepsPerRev) / 360.0,
	}
}

// StepsFromAngle converts an angle (in degrees) to motor steps.
func (s *StepsCalculator) StepsFromAngle(angleDegrees float64) int {
	return int(angleDegrees * s.stepsPerDegree)
}

// AngleFromSteps converts a signed step count to degrees. It returns 0 when
// steps per revolution is unknown.
func (s *StepsCalculator) AngleFromSteps(steps int) float64 {
	if s.stepsPerDegree == 0 {
		return 0
	}
	return float64(steps) / s.stepsPerDegree
}
