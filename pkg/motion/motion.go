// Package motion contains the closed-loop drive controllers: straight-line
// distance control on a drive encoder and in-place rotation control on the
// robot heading.  Both are proportional controllers with output saturation
// that block until they converge, hit their configured bounds, or their
// context is cancelled.  The drive is always stopped before they return.
package motion

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// ErrDidNotConverge is returned when a controller exceeds its iteration or
// duration bound before reaching its target.
var ErrDidNotConverge = errors.New("motion did not converge")

// Actuator drives the left and right sides of the robot.  Apply(0, 0) stops.
type Actuator interface {
	Apply(left, right int) error
}

// PositionSensor reports the reference drive encoder in counts.
type PositionSensor interface {
	Position() (float64, error)
}

// HeadingSensor reports the robot's logical heading in degrees.
type HeadingSensor interface {
	Heading() float64
}

// Status is a snapshot of a controller iteration, for diagnostics only.
type Status struct {
	Controller string
	Target     float64
	Current    float64
	Error      float64
	Power      int
	Iteration  int
}

// Reporter receives a Status on every control iteration.  It is for
// diagnostics only: it must not block and nothing it does feeds back into
// the loop.
type Reporter interface {
	ReportMotion(s Status)
}

// Result summarises a completed controller call.
type Result struct {
	Iterations int
	FinalError float64
	Elapsed    time.Duration
}

type loopGuard struct {
	bounds     Bounds
	clock      clock.Clock
	start      time.Time
	iterations int
}

func newLoopGuard(b Bounds, clk clock.Clock) *loopGuard {
	return &loopGuard{
		bounds: b,
		clock:  clk,
		start:  clk.Now(),
	}
}

// next is called before each control iteration.
func (g *loopGuard) next(ctx context.Context, currentError float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.bounds.MaxIterations > 0 && g.iterations >= g.bounds.MaxIterations {
		return errors.Wrapf(ErrDidNotConverge, "error %.1f after %d iterations", currentError, g.iterations)
	}
	if g.bounds.MaxDuration > 0 {
		if elapsed := g.clock.Since(g.start); elapsed >= g.bounds.MaxDuration {
			return errors.Wrapf(ErrDidNotConverge, "error %.1f after %v", currentError, elapsed)
		}
	}
	g.iterations++
	return nil
}

// wait pauses for the poll interval, returning early if ctx is cancelled.
func (g *loopGuard) wait(ctx context.Context) error {
	if g.bounds.PollInterval <= 0 {
		return ctx.Err()
	}
	t := g.clock.Timer(g.bounds.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func proportional(err, kp float64) int {
	return int(math.Round(err * kp))
}

// saturate clamps power to ±limit once its magnitude exceeds trigger.
func saturate(power, trigger, limit int) int {
	if power > trigger {
		return limit
	}
	if power < -trigger {
		return -limit
	}
	return power
}

type nopReporter struct{}

func (nopReporter) ReportMotion(Status) {}
