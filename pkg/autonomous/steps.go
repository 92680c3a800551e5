package autonomous

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type StepKind string

const (
	// StepDrive drives Distance units straight, at up to MaxPower.
	StepDrive StepKind = "drive"
	// StepTurn turns to the absolute heading Angle, at up to MaxPower.
	StepTurn StepKind = "turn"
	// StepTimed drives at Power for Duration without feedback.
	StepTimed StepKind = "timed"
	// StepIntake spins the intake at RPM.
	StepIntake StepKind = "intake"
	// StepFlywheels spins the flywheels at Upper and Lower RPM.
	StepFlywheels StepKind = "flywheels"
	// StepWings extends or retracts the wings.
	StepWings StepKind = "wings"
	// StepWait pauses for Duration.
	StepWait StepKind = "wait"
)

type Step struct {
	Kind StepKind `yaml:"kind"`

	Distance float64       `yaml:"distance,omitempty"`
	Angle    float64       `yaml:"angle,omitempty"`
	MaxPower int           `yaml:"maxPower,omitempty"`
	Power    int           `yaml:"power,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
	RPM      int           `yaml:"rpm,omitempty"`
	Upper    int           `yaml:"upper,omitempty"`
	Lower    int           `yaml:"lower,omitempty"`
	Extended bool          `yaml:"extended,omitempty"`
}

func Drive(distance float64) Step {
	return Step{Kind: StepDrive, Distance: distance}
}

func Turn(angle float64) Step {
	return Step{Kind: StepTurn, Angle: angle}
}

func Timed(d time.Duration, power int) Step {
	return Step{Kind: StepTimed, Duration: d, Power: power}
}

func Intake(rpm int) Step {
	return Step{Kind: StepIntake, RPM: rpm}
}

func Flywheels(upper, lower int) Step {
	return Step{Kind: StepFlywheels, Upper: upper, Lower: lower}
}

func Wings(extended bool) Step {
	return Step{Kind: StepWings, Extended: extended}
}

func Wait(d time.Duration) Step {
	return Step{Kind: StepWait, Duration: d}
}

func (s Step) String() string {
	switch s.Kind {
	case StepDrive:
		return fmt.Sprintf("drive %.1f", s.Distance)
	case StepTurn:
		return fmt.Sprintf("turn to %.1f", s.Angle)
	case StepTimed:
		return fmt.Sprintf("drive at %d for %v", s.Power, s.Duration)
	case StepIntake:
		return fmt.Sprintf("intake %d", s.RPM)
	case StepFlywheels:
		return fmt.Sprintf("flywheels %d/%d", s.Upper, s.Lower)
	case StepWings:
		if s.Extended {
			return "wings out"
		}
		return "wings in"
	case StepWait:
		return fmt.Sprintf("wait %v", s.Duration)
	}
	return string(s.Kind)
}

func (s Step) Validate() error {
	switch s.Kind {
	case StepDrive, StepTurn, StepIntake, StepFlywheels, StepWings:
	case StepTimed, StepWait:
		if s.Duration <= 0 {
			return errors.Errorf("%s step needs a positive duration", s.Kind)
		}
	default:
		return errors.Errorf("unknown step kind %q", s.Kind)
	}
	if s.MaxPower < 0 {
		return errors.Errorf("%s step has negative maxPower", s.Kind)
	}
	return nil
}

type Config struct {
	Steps []Step `yaml:"steps"`
	// AbortOnStall ends the routine when a drive or turn doesn't converge,
	// instead of carrying on with the next step.
	AbortOnStall bool `yaml:"abortOnStall"`
}

// DefaultConfig is the match routine: score the preload, back off, turn
// towards the goal, push in and outtake, then push again.
func DefaultConfig() Config {
	return Config{
		Steps: []Step{
			Intake(600),
			Flywheels(10, 10),
			Timed(time.Second, 75),
			Wait(time.Second),
			Intake(100),
			Drive(-5),
			Turn(105),
			Drive(10),
			Intake(-600),
			Wait(2 * time.Second),
			Intake(0),
			Flywheels(0, 0),
			Drive(10),
		},
	}
}

func (c Config) Validate() error {
	for i, s := range c.Steps {
		if err := s.Validate(); err != nil {
			return errors.Wrapf(err, "autonomous step %d", i+1)
		}
	}
	return nil
}
