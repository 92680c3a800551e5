package motion

import (
	"time"

	"github.com/pkg/errors"
)

// MaxMotorPower is the largest power a drive motor accepts.
const MaxMotorPower = 127

// DefaultMaxPower is used when a caller passes a non-positive maxPower.
const DefaultMaxPower = 50

// ErrorLaw selects how the rotation controller recomputes its error.
type ErrorLaw string

const (
	// AbsoluteLaw tracks the commanded absolute heading:
	// error = Normalize(target - heading).
	AbsoluteLaw ErrorLaw = "absolute"
	// SnapshotLaw fixes the delta between the target and the heading at call
	// time and compares it against the live heading,
	// error = Normalize((target - startHeading) - heading).
	SnapshotLaw ErrorLaw = "snapshot"
)

// Bounds limit how long a controller may run before giving up.  A zero value
// disables the corresponding limit.
type Bounds struct {
	// PollInterval is the pause between sensor reads; 0 polls in a tight
	// loop.
	PollInterval  time.Duration `yaml:"pollInterval"`
	MaxDuration   time.Duration `yaml:"maxDuration"`
	MaxIterations int           `yaml:"maxIterations"`
}

// LinearConfig tunes the straight-line controller.
type LinearConfig struct {
	// CountsPerUnit converts the commanded distance to encoder counts.
	CountsPerUnit   float64 `yaml:"countsPerUnit"`
	Kp              float64 `yaml:"kp"`
	Epsilon         float64 `yaml:"epsilon"`
	DefaultMaxPower int     `yaml:"defaultMaxPower"`

	Bounds `yaml:",inline"`
}

// RotationConfig tunes the turn controller.
type RotationConfig struct {
	Kp              float64 `yaml:"kp"`
	Epsilon         float64 `yaml:"epsilon"`
	DefaultMaxPower int     `yaml:"defaultMaxPower"`

	// ClampTrigger is the power magnitude above which the output is clamped
	// to maxPower.  0 uses maxPower itself.
	ClampTrigger int      `yaml:"clampTrigger"`
	ErrorLaw     ErrorLaw `yaml:"errorLaw"`

	Bounds `yaml:",inline"`
}

// Config is the motion section of the robot config.
type Config struct {
	Linear   LinearConfig   `yaml:"linear"`
	Rotation RotationConfig `yaml:"rotation"`
}

func DefaultConfig() Config {
	return Config{
		Linear: LinearConfig{
			CountsPerUnit:   37.5,
			Kp:              0.6,
			Epsilon:         40,
			DefaultMaxPower: DefaultMaxPower,
			Bounds: Bounds{
				PollInterval: 10 * time.Millisecond,
				MaxDuration:  5 * time.Second,
			},
		},
		Rotation: RotationConfig{
			Kp:              0.8,
			Epsilon:         2,
			DefaultMaxPower: DefaultMaxPower,
			ErrorLaw:        AbsoluteLaw,
			Bounds: Bounds{
				PollInterval: 10 * time.Millisecond,
				MaxDuration:  3 * time.Second,
			},
		},
	}
}

// ParityConfig is the competition tuning of the turn: the snapshot error law
// with a fixed clamp trigger of 30.
func ParityConfig() Config {
	c := DefaultConfig()
	c.Rotation.ErrorLaw = SnapshotLaw
	c.Rotation.ClampTrigger = 30
	return c
}

func (c Config) Validate() error {
	if err := c.Linear.Validate(); err != nil {
		return errors.Wrap(err, "linear")
	}
	if err := c.Rotation.Validate(); err != nil {
		return errors.Wrap(err, "rotation")
	}
	return nil
}

func (c LinearConfig) Validate() error {
	if c.CountsPerUnit == 0 {
		return errors.New("countsPerUnit must be non-zero")
	}
	if err := validateGains(c.Kp, c.Epsilon, c.DefaultMaxPower); err != nil {
		return err
	}
	return c.Bounds.Validate()
}

func (c RotationConfig) Validate() error {
	if err := validateGains(c.Kp, c.Epsilon, c.DefaultMaxPower); err != nil {
		return err
	}
	if c.ClampTrigger < 0 {
		return errors.Errorf("clampTrigger %d is negative", c.ClampTrigger)
	}
	switch c.ErrorLaw {
	case AbsoluteLaw, SnapshotLaw:
	default:
		return errors.Errorf("unknown errorLaw %q", c.ErrorLaw)
	}
	return c.Bounds.Validate()
}

func (b Bounds) Validate() error {
	if b.PollInterval < 0 || b.MaxDuration < 0 || b.MaxIterations < 0 {
		return errors.New("bounds must not be negative")
	}
	return nil
}

func validateGains(kp, epsilon float64, maxPower int) error {
	if kp <= 0 {
		return errors.Errorf("kp %v must be positive", kp)
	}
	if epsilon <= 0 {
		return errors.Errorf("epsilon %v must be positive", epsilon)
	}
	if maxPower <= 0 || maxPower > MaxMotorPower {
		return errors.Errorf("defaultMaxPower %d out of range (0, %d]", maxPower, MaxMotorPower)
	}
	return nil
}

func resolveMaxPower(requested, fallback int) int {
	if requested <= 0 {
		requested = fallback
	}
	if requested > MaxMotorPower {
		requested = MaxMotorPower
	}
	return requested
}
