// Package robot ties the hardware to the drive, heading and motion control
// layers and exposes the mechanisms the modes use.
package robot

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/drivetrain"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/hardware"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/heading"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/screen"
)

// Ports says which hub port each motor is on and which pistons drive the
// wings.
type Ports struct {
	LeftFront  int `yaml:"leftFront"`
	LeftUpper  int `yaml:"leftUpper"`
	LeftBack   int `yaml:"leftBack"`
	RightFront int `yaml:"rightFront"`
	RightUpper int `yaml:"rightUpper"`
	RightBack  int `yaml:"rightBack"`

	Intake        int `yaml:"intake"`
	UpperFlywheel int `yaml:"upperFlywheel"`
	LowerFlywheel int `yaml:"lowerFlywheel"`

	Wings []string `yaml:"wings"`
}

func DefaultPorts() Ports {
	return Ports{
		LeftFront:     11,
		LeftUpper:     13,
		LeftBack:      12,
		RightFront:    20,
		RightUpper:    18,
		RightBack:     19,
		Intake:        10,
		UpperFlywheel: 1,
		LowerFlywheel: 15,
		Wings:         []string{"A", "B"},
	}
}

func (p Ports) motors() map[string]int {
	return map[string]int{
		"left front":     p.LeftFront,
		"left upper":     p.LeftUpper,
		"left back":      p.LeftBack,
		"right front":    p.RightFront,
		"right upper":    p.RightUpper,
		"right back":     p.RightBack,
		"intake":         p.Intake,
		"upper flywheel": p.UpperFlywheel,
		"lower flywheel": p.LowerFlywheel,
	}
}

func (p Ports) Validate() error {
	used := map[int]string{}
	for name, port := range p.motors() {
		if port < 1 || port > motorhub.NumPorts {
			return errors.Errorf("%s motor port %d out of range [1, %d]", name, port, motorhub.NumPorts)
		}
		if other, ok := used[port]; ok {
			return errors.Errorf("%s and %s motors both on port %d", name, other, port)
		}
		used[port] = name
	}
	return nil
}

type Robot struct {
	HW       hardware.Interface
	Drive    *drivetrain.Drivetrain
	Heading  *heading.Source
	Linear   *motion.Linear
	Rotation *motion.Rotation
	Screen   *screen.Screen

	log *zap.SugaredLogger

	driveMotors   []hardware.Motor
	intake        hardware.Motor
	upperFlywheel hardware.Motor
	lowerFlywheel hardware.Motor
	wings         []hardware.Piston
}

// New wires up the robot.  The hardware must already be started.  scr may be
// nil if there is no status display.
func New(
	hw hardware.Interface,
	ports Ports,
	driveCfg drivetrain.Config,
	motionCfg motion.Config,
	scr *screen.Screen,
	clk clock.Clock,
	log *zap.SugaredLogger,
) (*Robot, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	r := &Robot{
		HW:     hw,
		Screen: scr,
		log:    log,
	}
	var err error
	motor := func(port int) hardware.Motor {
		m, e := hw.Motor(port)
		err = multierr.Append(err, e)
		return m
	}
	driveMotor := func(port int) hardware.Motor {
		m := motor(port)
		r.driveMotors = append(r.driveMotors, m)
		return m
	}
	dm := drivetrain.Motors{
		LeftFront:  driveMotor(ports.LeftFront),
		LeftUpper:  driveMotor(ports.LeftUpper),
		LeftBack:   driveMotor(ports.LeftBack),
		RightFront: driveMotor(ports.RightFront),
		RightUpper: driveMotor(ports.RightUpper),
		RightBack:  driveMotor(ports.RightBack),
	}
	r.intake = motor(ports.Intake)
	r.upperFlywheel = motor(ports.UpperFlywheel)
	r.lowerFlywheel = motor(ports.LowerFlywheel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get motors")
	}
	for _, name := range ports.Wings {
		p, err := hw.Piston(name)
		if err != nil {
			return nil, err
		}
		r.wings = append(r.wings, p)
	}

	r.Drive, err = drivetrain.New(dm, driveCfg)
	if err != nil {
		return nil, err
	}
	r.Heading = heading.New(hw.RotationSensor(), log.Named("heading"))
	r.Linear = motion.NewLinear(r.Drive, r.Drive, motionCfg.Linear, clk, log.Named("linear"))
	r.Rotation = motion.NewRotation(r.Drive, r.Heading, motionCfg.Rotation, clk, log.Named("rotation"))
	if scr != nil {
		r.Linear.Reporter = scr
		r.Rotation.Reporter = scr
	}
	return r, nil
}

// Initialize recalibrates the rotation sensor, takes the current orientation
// as heading zero and lets the drive coast.
func (r *Robot) Initialize() error {
	var err error
	if e := r.Heading.Reset(); e != nil {
		r.log.Warnw("Rotation sensor reset failed; continuing with the old calibration", "err", e)
		err = multierr.Append(err, errors.Wrap(e, "failed to reset rotation sensor"))
	}
	r.Heading.Zero()
	for _, m := range r.driveMotors {
		if e := m.SetBrakeMode(motorhub.BrakeCoast); e != nil {
			err = multierr.Append(err, errors.Wrap(e, "failed to set drive brake mode"))
		}
	}
	r.log.Infow("Robot initialised", "headingOffset", r.Heading.Offset())
	return err
}

func (r *Robot) DriveStraight(ctx context.Context, distance float64, maxPower int) (motion.Result, error) {
	return r.Linear.DriveStraight(ctx, distance, maxPower)
}

func (r *Robot) TurnTo(ctx context.Context, absoluteAngle float64, maxPower int) (motion.Result, error) {
	return r.Rotation.TurnTo(ctx, absoluteAngle, maxPower)
}

func (r *Robot) DriveTimed(ctx context.Context, d time.Duration, power int) error {
	return r.Linear.DriveTimed(ctx, d, power)
}

// ApplyDrive sets the left and right drive power directly, for operator
// control.
func (r *Robot) ApplyDrive(left, right int) error {
	return r.Drive.Apply(left, right)
}

// HeadingDegrees is the logical heading relative to the last zero.
func (r *Robot) HeadingDegrees() float64 {
	return r.Heading.Heading()
}

// ZeroHeading takes the current orientation as heading zero.
func (r *Robot) ZeroHeading() {
	r.Heading.Zero()
}

// SetIntake spins the intake at rpm; positive takes game pieces in.
func (r *Robot) SetIntake(rpm int) error {
	return errors.Wrap(r.intake.MoveVelocity(rpm), "failed to set intake")
}

func (r *Robot) SetFlywheels(upper, lower int) error {
	return multierr.Combine(
		errors.Wrap(r.upperFlywheel.MoveVelocity(upper), "failed to set upper flywheel"),
		errors.Wrap(r.lowerFlywheel.MoveVelocity(lower), "failed to set lower flywheel"),
	)
}

func (r *Robot) SetWings(extended bool) error {
	var err error
	for _, w := range r.wings {
		err = multierr.Append(err, w.Set(extended))
	}
	return errors.Wrap(err, "failed to move wings")
}

// Positions returns the sign-corrected left and right drive encoder counts.
func (r *Robot) Positions() (left, right float64, err error) {
	left, err = r.Drive.LeftPosition()
	if err != nil {
		return 0, 0, err
	}
	right, err = r.Drive.RightPosition()
	return left, right, err
}

// StopAll stops every motor; the wings stay where they are.
func (r *Robot) StopAll() error {
	return r.HW.StopAll()
}
