package drivetrain

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Motor is a single drive actuator accepting a signed power level.
type Motor interface {
	Move(power int) error
}

// Encoder reports the accumulated position of a motor in encoder counts.
type Encoder interface {
	Position() (float64, error)
}

// EncodedMotor is a drive motor with an integrated encoder.
type EncodedMotor interface {
	Motor
	Encoder
}

type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// SideConfig records which motors of one side are mechanically inverted
// relative to the side's direction of travel.
type SideConfig struct {
	FrontReversed bool `yaml:"frontReversed"`
	UpperReversed bool `yaml:"upperReversed"`
	BackReversed  bool `yaml:"backReversed"`
}

type Config struct {
	Left  SideConfig `yaml:"left"`
	Right SideConfig `yaml:"right"`

	// Reference is the side whose front encoder measures straight-line
	// travel.
	Reference Side `yaml:"reference"`
}

// DefaultConfig matches the pushbot chassis: the upper motor on the right and
// the front and back motors on the left are inverted.
func DefaultConfig() Config {
	return Config{
		Left: SideConfig{
			FrontReversed: true,
			BackReversed:  true,
		},
		Right: SideConfig{
			UpperReversed: true,
		},
		Reference: Right,
	}
}

func (c Config) Validate() error {
	if c.Reference != Left && c.Reference != Right {
		return errors.Errorf("invalid drive reference side %q", c.Reference)
	}
	return nil
}

// Motors are the six drive motors, three per side.
type Motors struct {
	LeftFront, LeftUpper, LeftBack    EncodedMotor
	RightFront, RightUpper, RightBack EncodedMotor
}

type wheel struct {
	name     string
	motor    Motor
	reversed bool
}

// Drivetrain applies left/right power pairs to all drive motors.  Positive
// power on both sides drives the robot forward.
type Drivetrain struct {
	wheels []wheel

	left, right         Encoder
	leftSign, rightSign float64
	reference           Side
}

func New(m Motors, cfg Config) (*Drivetrain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Drivetrain{
		wheels: []wheel{
			{"right front", m.RightFront, cfg.Right.FrontReversed},
			{"right upper", m.RightUpper, cfg.Right.UpperReversed},
			{"right back", m.RightBack, cfg.Right.BackReversed},
			{"left front", m.LeftFront, cfg.Left.FrontReversed},
			{"left upper", m.LeftUpper, cfg.Left.UpperReversed},
			{"left back", m.LeftBack, cfg.Left.BackReversed},
		},
		left:      m.LeftFront,
		right:     m.RightFront,
		leftSign:  sign(cfg.Left.FrontReversed),
		rightSign: sign(cfg.Right.FrontReversed),
		reference: cfg.Reference,
	}
	for _, w := range d.wheels {
		if w.motor == nil {
			return nil, errors.Errorf("missing %s drive motor", w.name)
		}
	}
	return d, nil
}

// Apply sets the power of every drive motor.  Values are passed through
// unclamped.  All motors are written even if one of them fails.
func (d *Drivetrain) Apply(left, right int) error {
	var err error
	for i, w := range d.wheels {
		p := right
		if i >= 3 {
			p = left
		}
		if w.reversed {
			p = -p
		}
		if mErr := w.motor.Move(p); mErr != nil {
			err = multierr.Append(err, errors.Wrapf(mErr, "%s motor", w.name))
		}
	}
	return err
}

// Stop commands zero power on every drive motor.
func (d *Drivetrain) Stop() error {
	return d.Apply(0, 0)
}

// Position returns the reference side's encoder count.  Forward travel
// increases the count.
func (d *Drivetrain) Position() (float64, error) {
	if d.reference == Left {
		return d.LeftPosition()
	}
	return d.RightPosition()
}

func (d *Drivetrain) LeftPosition() (float64, error) {
	p, err := d.left.Position()
	if err != nil {
		return 0, errors.Wrap(err, "left front encoder")
	}
	return d.leftSign * p, nil
}

func (d *Drivetrain) RightPosition() (float64, error) {
	p, err := d.right.Position()
	if err != nil {
		return 0, errors.Wrap(err, "right front encoder")
	}
	return d.rightSign * p, nil
}

func sign(reversed bool) float64 {
	if reversed {
		return -1
	}
	return 1
}
