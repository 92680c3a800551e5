package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/autonomous"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/config"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/hardware"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/joystick"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/opmode"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/pausemode"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/robot"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/screen"
)

type Mode interface {
	Name() string
	StartupSound() string
	Start(ctx context.Context)
	Stop()
}

type JoystickUser interface {
	OnJoystickEvent(event *joystick.Event)
}

const (
	joystickLine = 6
	modeLine     = 7
)

func main() {
	app := &cli.App{
		Name:  "controller",
		Usage: "pushbot robot controller",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath, Usage: "config file"},
			&cli.BoolFlag{Name: "dummy", Usage: "run against the simulated robot"},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
			&cli.StringFlag{Name: "mode", Value: "opcontrol", Usage: "starting mode: autonomous, opcontrol or pause"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	fmt.Println("---- Pushbot ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	log, err := config.NewLogger(c.Bool("log-json"), c.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(c.String("config"), log)
	if err != nil {
		return err
	}
	if err := cfg.WriteInUse(config.InUsePath); err != nil {
		log.Warnw("Failed to record config in use", "err", err)
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel, log)

	clk := clock.New()
	scr := screen.New(log.Named("screen"))
	var hw hardware.Interface
	if c.Bool("dummy") {
		hw = hardware.NewDummy(cfg.Hardware.Sim, clk, log.Named("dummy"))
	} else {
		hw = hardware.New(cfg.Hardware, scr, log.Named("hardware"))
	}
	defer func() {
		log.Info("Zeroing motors for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()
	if err := hw.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start hardware")
	}

	r, err := robot.New(hw, cfg.Ports, cfg.Drive, cfg.Motion, scr, clk, log.Named("robot"))
	if err != nil {
		return err
	}
	if err := r.Initialize(); err != nil {
		log.Warnw("Robot initialisation incomplete", "err", err)
	}

	joystickEvents := initJoystick(ctx, cancel, clk, scr, log.Named("joystick"))

	hw.PlaySound("pushbotstart")

	allModes := []Mode{
		autonomous.New(r, cfg.Autonomous, clk, log.Named("autonomous")),
		opmode.New(r, scr, cfg.OpControl, clk, log.Named("opcontrol")),
		&pausemode.PauseMode{Robot: r, Log: log.Named("pause")},
	}
	activeModeIdx, err := modeIndex(c.String("mode"))
	if err != nil {
		return err
	}
	activeMode := allModes[activeModeIdx]
	log.Infof("----- %s -----", activeMode.Name())
	scr.SetText(modeLine, "Mode: %s", activeMode.Name())
	activeMode.Start(ctx)

	switchMode := func(delta int) {
		log.Infow("Mode switch", "delta", delta)
		activeMode.Stop()
		if err := r.StopAll(); err != nil {
			log.Errorw("Mode switch: failed to stop motors", "err", err)
		}
		activeModeIdx += delta
		activeModeIdx = (activeModeIdx + len(allModes)) % len(allModes)
		activeMode = allModes[activeModeIdx]
		log.Infof("----- %s -----", activeMode.Name())
		scr.SetText(modeLine, "Mode: %s", activeMode.Name())

		hw.PlaySound(activeMode.StartupSound())

		activeMode.Start(ctx)
	}

	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Context done, stopping active mode and shutting down")
			activeMode.Stop()
			return nil
		case event, ok := <-joystickEvents:
			if !ok {
				log.Error("Joystick events channel closed!")
				activeMode.Stop()
				cancel()
				return nil
			}
			// Intercept the Options button to implement mode switching.
			if event.Type == joystick.EventTypeButton &&
				event.Number == joystick.ButtonOptions &&
				event.Value == 1 {
				log.Info("Options pressed: switching modes >>")
				switchMode(1)
				continue
			} else if event.Type == joystick.EventTypeButton &&
				event.Number == joystick.ButtonShare &&
				event.Value == 1 {
				log.Info("Share pressed: switching modes <<")
				switchMode(-1)
				continue
			}
			// Pass other joystick events through if this mode requires them.
			if ju, ok := activeMode.(JoystickUser); ok {
				deliverEvent(ju, event)
			}
		case <-watchdog.C:
			log.Debugw("Main loop still running", "battery", hw.BatteryVolts())
		}
	}
}

func modeIndex(name string) (int, error) {
	switch strings.ToLower(name) {
	case "autonomous", "auto":
		return 0, nil
	case "opcontrol", "op":
		return 1, nil
	case "pause":
		return 2, nil
	}
	return 0, errors.Errorf("unknown mode %q", name)
}

func deliverEvent(ju JoystickUser, event *joystick.Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ju.OnJoystickEvent(event)
	}()
	timeout := time.NewTimer(1 * time.Second)
	select {
	case <-done:
		timeout.Stop()
	case <-timeout.C:
		// All the modes are supposed to just record the event for their
		// background loop.  If they block this long, they've probably
		// deadlocked.
		panic("Deadlock? Active mode blocked OnJoystickEvent for >1s")
	}
}

// initJoystick opens the joystick in the background, retrying until it
// appears, so that autonomous can run without one.
func initJoystick(ctx context.Context, cancel context.CancelFunc, clk clock.Clock, scr *screen.Screen, log *zap.SugaredLogger) chan *joystick.Event {
	joystickEvents := make(chan *joystick.Event, 1)
	jDev := joystick.DeviceFromEnv()
	go func() {
		j, err := joystick.WaitForJoystick(ctx, jDev, clk, time.Second, func(err error) {
			scr.SetText(joystickLine, "NO JOYSTICK")
			log.Warnw("Waiting for joystick", "err", err)
		})
		if err != nil {
			return
		}
		scr.ClearLine(joystickLine)
		log.Infow("Opened joystick", "device", jDev)

		defer cancel()
		err = j.LoopReading(ctx, joystickEvents, log)
		log.Errorw("Joystick failed", "err", err)
	}()
	return joystickEvents
}

func registerSignalHandlers(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Infow("Signal", "signal", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
