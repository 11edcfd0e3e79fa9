package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/JoyStep/internal/config"
	"github.com/cjeanneret/JoyStep/internal/debug"
	"github.com/cjeanneret/JoyStep/internal/hw/adc"
	"github.com/cjeanneret/JoyStep/internal/hw/gpio"
	"github.com/cjeanneret/JoyStep/internal/hw/pcf8574"
	"github.com/cjeanneret/JoyStep/internal/hw/stepper"
	"github.com/cjeanneret/JoyStep/internal/logic/geometry"
	"github.com/cjeanneret/JoyStep/internal/logic/joystick"
	"github.com/cjeanneret/JoyStep/internal/logic/motion"
	"github.com/cjeanneret/JoyStep/internal/web"
	"go.uber.org/multierr"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	driveMode := flag.String("drive_mode", "", "override ULN2003 drive mode (full|half)")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	sweep := flag.Int("sweep", 0, "move every axis N steps forward then back at the fastest delay, and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := options{
		configPath: *cfgPath,
		overrides:  config.Overrides{DriveMode: *driveMode, DebugLevel: *debugLevel},
		webPort:    webPort.port(),
		sweep:      *sweep,
	}
	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("joystep: %v", err)
	}
}

type options struct {
	configPath string
	overrides  config.Overrides
	webPort    int
	sweep      int
}

func run(ctx context.Context, opts options) (err error) {
	if err := config.ValidateConfigPath(opts.configPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if err := config.ValidateOverrides(opts.overrides); err != nil {
		return fmt.Errorf("invalid CLI override: %w", err)
	}
	cfg.Apply(opts.overrides)

	var broadcaster *web.StatusBroadcaster
	if opts.webPort > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", opts.configPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Output", cfg.Defaults.Output)
	debug.Value("Input", cfg.Defaults.Input)

	debug.Step(1, "Initializing coil outputs")
	driver, err := newOutputDriver(cfg)
	if err != nil {
		return fmt.Errorf("init outputs failed: %w", err)
	}
	defer func() {
		err = multierr.Append(err, driver.Close())
	}()

	debug.Step(2, "Initializing joystick input")
	sampler, virtual, closeInput, err := newInput(cfg)
	if err != nil {
		return fmt.Errorf("init joystick failed: %w", err)
	}
	defer func() {
		err = multierr.Append(err, closeInput())
	}()

	debug.Step(3, "Initializing motors")
	axes, err := buildAxes(cfg, driver)
	if err != nil {
		return err
	}

	if opts.sweep != 0 {
		return runSweep(ctx, axes, opts.sweep, cfg.Delays(), motion.RealSleeper{})
	}

	ctrl, err := motion.NewController(sampler, axes, motion.Config{Tick: cfg.Tick()})
	if err != nil {
		return err
	}

	if opts.webPort == 0 {
		return ctrl.Run(ctx)
	}

	var js web.JoystickSetter
	if virtual != nil {
		js = virtual
	}
	handlers := web.NewHandlers(broadcaster, ctrl.Status, js, newConfigView(cfg))
	srv := web.NewServer(fmt.Sprintf(":%d", opts.webPort), handlers)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- ctrl.Run(loopCtx) }()

	if err := srv.Run(ctx); err != nil {
		stopLoop()
		<-loopErr
		return fmt.Errorf("web server: %w", err)
	}
	return <-loopErr
}

// newOutputDriver selects the coil output backend.
func newOutputDriver(cfg *config.Config) (gpio.Driver, error) {
	switch cfg.Defaults.Output {
	case config.OutputPCF8574:
		debug.Value("Expander address", fmt.Sprintf("0x%02x", cfg.Expander.Address))
		return pcf8574.Open(cfg.Expander.Bus, cfg.Expander.Address)
	default:
		return gpio.NewDriver(cfg.MockOutput())
	}
}

// newInput selects the joystick backend. virtual is non-nil only for the
// software joystick, which starts centered on every channel.
func newInput(cfg *config.Config) (adc.Sampler, *adc.Virtual, func() error, error) {
	channels := make([]int, 0, len(cfg.Motors))
	rest := make(map[int]int, len(cfg.Motors))
	for _, m := range cfg.Motors {
		if _, ok := rest[m.Channel]; !ok {
			channels = append(channels, m.Channel)
			rest[m.Channel] = m.Joystick.Center
		}
	}

	switch cfg.Defaults.Input {
	case config.InputADS1115:
		s, err := adc.OpenADS1115(adc.ADS1115Config{
			Bus:           cfg.ADC.Bus,
			Address:       cfg.ADC.Address,
			MaxMillivolts: cfg.ADC.MaxMillivolts,
			Channels:      channels,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s.Close, nil
	default:
		v := adc.NewVirtual(rest)
		return v, v, func() error { return nil }, nil
	}
}

// buildAxes creates one motor and decoder per configured motor.
func buildAxes(cfg *config.Config, driver gpio.Driver) ([]motion.Axis, error) {
	axes := make([]motion.Axis, 0, len(cfg.Motors))
	for _, m := range cfg.Motors {
		motor, err := newMotor(driver, m)
		if err != nil {
			return nil, fmt.Errorf("motor %q: %w", m.Name, err)
		}
		dec, err := joystick.NewDecoder(m.Joystick, cfg.Delays())
		if err != nil {
			return nil, fmt.Errorf("motor %q: %w", m.Name, err)
		}
		debug.PrintStruct("Motor "+m.Name, m)
		axes = append(axes, motion.Axis{
			Name:    m.Name,
			Channel: m.Channel,
			Decoder: dec,
			Motor:   motor,
			Steps:   geometry.NewStepsCalculator(m.StepsPerRev),
		})
	}
	return axes, nil
}

func newMotor(driver gpio.Driver, m config.MotorConfig) (motion.Motor, error) {
	switch m.Driver {
	case config.DriverA4988:
		return stepper.NewA4988(driver, stepper.A4988Config{
			StepPin:   m.StepPin,
			DirPin:    m.DirPin,
			EnablePin: m.EnablePin,
		})
	default:
		table, err := stepper.DriveMode(m.DriveMode).Table()
		if err != nil {
			return nil, err
		}
		coils, err := gpio.OutputPins(driver, m.Pins...)
		if err != nil {
			return nil, err
		}
		return stepper.NewULN2003(coils, table)
	}
}

// runSweep moves each axis steps forward and back at the fastest delay.
func runSweep(ctx context.Context, axes []motion.Axis, steps int, delays joystick.DelayRange, s motion.Sleeper) error {
	delay := joystick.Command{Action: joystick.Forward, DelayMs: delays.MinMs}.Delay()
	debug.Section("Sweep")
	for _, a := range axes {
		debug.Info("Sweeping %s: %d steps out and back", a.Name, steps)
		if err := motion.MoveSteps(ctx, a.Motor, steps, delay, s); err != nil {
			return fmt.Errorf("sweep %s: %w", a.Name, err)
		}
		if err := motion.MoveSteps(ctx, a.Motor, -steps, delay, s); err != nil {
			return fmt.Errorf("sweep %s: %w", a.Name, err)
		}
	}
	return nil
}

func newConfigView(cfg *config.Config) web.ConfigView {
	view := web.ConfigView{
		TickMs:     cfg.Defaults.TickMs,
		MinDelayMs: cfg.Defaults.MinDelayMs,
		MaxDelayMs: cfg.Defaults.MaxDelayMs,
		Output:     cfg.Defaults.Output,
		Input:      cfg.Defaults.Input,
		Axes:       make([]web.AxisConfig, len(cfg.Motors)),
	}
	for i, m := range cfg.Motors {
		view.Axes[i] = web.AxisConfig{
			Name:        m.Name,
			Driver:      m.Driver,
			DriveMode:   m.DriveMode,
			Channel:     m.Channel,
			StepsPerRev: m.StepsPerRev,
			Joystick:    m.Joystick,
		}
	}
	return view
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
