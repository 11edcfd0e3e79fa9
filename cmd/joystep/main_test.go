package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/JoyStep/internal/config"
	"github.com/cjeanneret/JoyStep/internal/hw/gpio"
	"github.com/cjeanneret/JoyStep/internal/hw/stepper"
	"github.com/cjeanneret/JoyStep/internal/logic/joystick"
	"github.com/cjeanneret/JoyStep/internal/logic/motion"
)

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- wiring ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Defaults: config.DefaultsConfig{
			TickMs: 1, MinDelayMs: 2, MaxDelayMs: 20,
			Output: config.OutputMock, Input: config.InputVirtual,
		},
		Motors: []config.MotorConfig{
			{
				Name: "pan", Driver: config.DriverULN2003, Pins: []int{17, 18, 27, 22},
				DriveMode: config.DriveModeHalf, Channel: 0, StepsPerRev: 4096,
				Joystick: joystick.Calibration1620,
			},
			{
				Name: "tilt", Driver: config.DriverA4988, StepPin: 23, DirPin: 24,
				Channel: 1, StepsPerRev: 200, Joystick: joystick.Calibration1650,
			},
		},
	}
}

func TestBuildAxes(t *testing.T) {
	cfg := newTestConfig()
	axes, err := buildAxes(cfg, &gpio.MockDriver{})
	if err != nil {
		t.Fatalf("buildAxes: %v", err)
	}
	if len(axes) != 2 {
		t.Fatalf("axes = %d, want 2", len(axes))
	}

	pan, ok := axes[0].Motor.(*stepper.ULN2003)
	if !ok {
		t.Fatalf("pan motor is %T, want *stepper.ULN2003", axes[0].Motor)
	}
	if len(pan.Table()) != len(stepper.HalfStepTable) {
		t.Errorf("pan table has %d phases, want half-step", len(pan.Table()))
	}
	if _, ok := axes[1].Motor.(*stepper.A4988); !ok {
		t.Errorf("tilt motor is %T, want *stepper.A4988", axes[1].Motor)
	}

	if axes[1].Channel != 1 || axes[1].Decoder.Calibration() != joystick.Calibration1650 {
		t.Errorf("tilt axis = %+v", axes[1])
	}
	if d := axes[0].Decoder.Delays(); d.MinMs != 2 || d.MaxMs != 20 {
		t.Errorf("pan delays = %+v", d)
	}
	if got := axes[0].Steps.AngleFromSteps(1024); math.Abs(got-90) > 1e-9 {
		t.Errorf("pan 1024 steps = %v°, want 90", got)
	}
}

func TestBuildAxes_BadDriveMode(t *testing.T) {
	cfg := newTestConfig()
	cfg.Motors[0].DriveMode = "wave"
	if _, err := buildAxes(cfg, &gpio.MockDriver{}); err == nil {
		t.Error("expected error for unknown drive mode")
	}
}

func TestNewInput_VirtualStartsCentered(t *testing.T) {
	cfg := newTestConfig()
	sampler, virtual, closeFn, err := newInput(cfg)
	if err != nil {
		t.Fatalf("newInput: %v", err)
	}
	defer closeFn()
	if virtual == nil {
		t.Fatal("virtual joystick should be returned for input=virtual")
	}
	for _, m := range cfg.Motors {
		got, err := sampler.Read(m.Channel)
		if err != nil {
			t.Fatalf("Read(%d): %v", m.Channel, err)
		}
		if got != m.Joystick.Center {
			t.Errorf("channel %d = %d, want center %d", m.Channel, got, m.Joystick.Center)
		}
	}
}

func TestNewConfigView(t *testing.T) {
	view := newConfigView(newTestConfig())
	if view.TickMs != 1 || view.Output != "mock" || view.Input != "virtual" {
		t.Errorf("view = %+v", view)
	}
	if len(view.Axes) != 2 || view.Axes[0].DriveMode != "half" || view.Axes[1].Driver != "a4988" {
		t.Errorf("axes = %+v", view.Axes)
	}
}

type recordingMotor struct{ calls []string }

func (m *recordingMotor) StepForward() error {
	m.calls = append(m.calls, "F")
	return nil
}

func (m *recordingMotor) StepBack() error {
	m.calls = append(m.calls, "B")
	return nil
}

func (m *recordingMotor) Stop() error {
	m.calls = append(m.calls, "S")
	return nil
}

type countingSleeper struct{ total time.Duration }

func (s *countingSleeper) Sleep(d time.Duration) { s.total += d }

func TestRunSweep(t *testing.T) {
	m := &recordingMotor{}
	sl := &countingSleeper{}
	axes := []motion.Axis{{Name: "pan", Motor: m}}

	if err := runSweep(context.Background(), axes, 2, joystick.DelayRange{MinMs: 3, MaxMs: 20}, sl); err != nil {
		t.Fatalf("runSweep: %v", err)
	}
	want := []string{"F", "F", "S", "B", "B", "S"}
	if len(m.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", m.calls, want)
	}
	for i := range want {
		if m.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", m.calls, want)
		}
	}
	if sl.total != 12*time.Millisecond {
		t.Errorf("slept %v, want 12ms", sl.total)
	}
}

// ---------- run ----------

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgDir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testYAML = `
defaults:
  debug_level: 0
motors:
  - name: pan
    pins: [17, 18, 27, 22]
`

func TestRun_CancelledLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, options{configPath: writeConfig(t, testYAML), overrides: config.Overrides{DebugLevel: -1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("run = %v, want context.Canceled", err)
	}
}

func TestRun_Sweep(t *testing.T) {
	yaml := `
defaults:
  debug_level: 0
  min_delay_ms: 1
motors:
  - name: pan
    pins: [17, 18, 27, 22]
`
	opts := options{configPath: writeConfig(t, yaml), overrides: config.Overrides{DebugLevel: -1}, sweep: 3}
	if err := run(context.Background(), opts); err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	cases := []struct {
		name string
		opts options
	}{
		{"bad_path", options{configPath: "elsewhere/test.yaml", overrides: config.Overrides{DebugLevel: -1}}},
		{"bad_override", options{configPath: writeConfig(t, testYAML), overrides: config.Overrides{DriveMode: "wave", DebugLevel: -1}}},
		{"bad_config", options{configPath: writeConfig(t, "motors: []\n"), overrides: config.Overrides{DebugLevel: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := run(context.Background(), tc.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
