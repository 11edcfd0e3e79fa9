package geometry

import (
	"math"
	"testing"
)

func TestStepsCalculator_KnownConfig(t *testing.T) {
	// 28BYJ-48 in half-step mode: 4096 steps/rev
	sc := NewStepsCalculator(4096)

	spd := 4096.0 / 360.0 // steps per degree
	cases := []struct {
		name  string
		angle float64
		want  int
	}{
		{"90_degrees", 90, int(90 * spd)},
		{"negative_90", -90, int(-90 * spd)},
		{"zero", 0, 0},
		{"full_360", 360, 4096},
		{"small_1_degree", 1, int(1 * spd)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sc.StepsFromAngle(tc.angle)
			if got != tc.want {
				t.Errorf("StepsFromAngle(%v) = %d, want %d", tc.angle, got, tc.want)
			}
		})
	}
}

func TestStepsCalculator_AngleFromSteps(t *testing.T) {
	cases := []struct {
		stepsPerRev int
		steps       int
		want        float64
	}{
		{2048, 2048, 360},
		{2048, 512, 90},
		{4096, -1024, -90},
		{4096, 0, 0},
	}
	for _, tc := range cases {
		sc := NewStepsCalculator(tc.stepsPerRev)
		got := sc.AngleFromSteps(tc.steps)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("AngleFromSteps(%d) with %d steps/rev = %v, want %v", tc.steps, tc.stepsPerRev, got, tc.want)
		}
	}
}

func TestStepsCalculator_RoundTrip(t *testing.T) {
	for _, spr := range []int{2048, 4096} {
		sc := NewStepsCalculator(spr)
		for _, angle := range []float64{0, 45, 90, 180, 360} {
			steps := sc.StepsFromAngle(angle)
			back := sc.AngleFromSteps(steps)
			if math.Abs(back-angle) > 360.0/float64(spr) {
				t.Errorf("spr=%d: %v° -> %d steps -> %v°", spr, angle, steps, back)
			}
		}
	}
}

func TestStepsCalculator_Unknown(t *testing.T) {
	sc := NewStepsCalculator(0)
	if sc.AngleFromSteps(100) != 0 {
		t.Error("unknown steps/rev should report 0 degrees")
	}
	if sc.StepsFromAngle(90) != 0 {
		t.Error("unknown steps/rev should convert to 0 steps")
	}
}
