package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/config"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/hardware"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/robot"
)

const usage = `Commands:
    d <distance> [maxPower]   drive straight
    t <angle> [maxPower]      turn to absolute heading
    z                         zero heading here
    h                         show heading and positions
    r                         reset rotation sensor and zero heading
    s                         stop all motors
    q                         quit`

var errQuit = errors.New("quit")

// Tester is the part of the robot the command loop exercises.
type Tester interface {
	DriveStraight(ctx context.Context, distance float64, maxPower int) (motion.Result, error)
	TurnTo(ctx context.Context, absoluteAngle float64, maxPower int) (motion.Result, error)
	ZeroHeading()
	HeadingDegrees() float64
	Positions() (left, right float64, err error)
	Initialize() error
	StopAll() error
}

func main() {
	app := &cli.App{
		Name:  "motiontests",
		Usage: "drive and turn the robot from stdin commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath, Usage: "config file"},
			&cli.BoolFlag{Name: "dummy", Usage: "run against the simulated robot"},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	fmt.Println("---- Motion tests ----")
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

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	var hw hardware.Interface
	if c.Bool("dummy") {
		hw = hardware.NewDummy(cfg.Hardware.Sim, clk, log.Named("dummy"))
	} else {
		hw = hardware.New(cfg.Hardware, nil, log.Named("hardware"))
	}
	defer func() {
		fmt.Println("Zeroing motors for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()
	if err := hw.Start(ctx); err != nil {
		return err
	}
	r, err := robot.New(hw, cfg.Ports, cfg.Drive, cfg.Motion, nil, clk, log.Named("robot"))
	if err != nil {
		return err
	}
	if err := r.Initialize(); err != nil {
		fmt.Println("Initialisation incomplete:", err)
	}

	fmt.Println(usage)
	return loop(ctx, r, os.Stdin, os.Stdout)
}

func loop(ctx context.Context, r Tester, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(line) == "" {
			return nil
		}
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "failed to read stdin")
		}
		if err := execute(ctx, r, line, out); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintln(out, err)
		}
	}
}

func execute(ctx context.Context, r Tester, line string, out io.Writer) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	switch parts[0] {
	case "d", "t":
		if len(parts) < 2 {
			return errors.New("not enough parameters")
		}
		target, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return errors.Wrap(err, "failed to parse target")
		}
		maxPower := 0
		if len(parts) > 2 {
			maxPower, err = strconv.Atoi(parts[2])
			if err != nil {
				return errors.Wrap(err, "failed to parse max power")
			}
		}
		var res motion.Result
		if parts[0] == "d" {
			res, err = r.DriveStraight(ctx, target, maxPower)
		} else {
			res, err = r.TurnTo(ctx, target, maxPower)
		}
		fmt.Fprintf(out, "%d iterations in %v, final error %.1f\n", res.Iterations, res.Elapsed, res.FinalError)
		if err != nil {
			return err
		}
	case "z":
		r.ZeroHeading()
		fmt.Fprintf(out, "Heading: %.1f\n", r.HeadingDegrees())
	case "h":
		left, right, err := r.Positions()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Heading: %.1f Left: %.0f Right: %.0f\n", r.HeadingDegrees(), left, right)
	case "r":
		if err := r.Initialize(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Heading: %.1f\n", r.HeadingDegrees())
	case "s":
		return r.StopAll()
	case "q":
		return errQuit
	default:
		return errors.Errorf("unknown command %q\n%s", parts[0], usage)
	}
	return nil
}
