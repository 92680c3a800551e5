package motion

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/angle"
)

// Rotation turns the robot in place to an absolute heading using
// proportional control on the heading sensor.
type Rotation struct {
	Reporter Reporter

	drive   Actuator
	heading HeadingSensor
	cfg     RotationConfig
	clock   clock.Clock
	log     *zap.SugaredLogger
}

// NewRotation returns a controller that turns on the spot to a heading.
func NewRotation(drive Actuator, heading HeadingSensor, cfg RotationConfig, clk clock.Clock, log *zap.SugaredLogger) *Rotation {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Rotation{
		Reporter: nopReporter{},
		drive:    drive,
		heading:  heading,
		cfg:      cfg,
		clock:    clk,
		log:      log,
	}
}

// TurnTo rotates to absoluteAngle degrees (relative to the heading zero).
// Positive power turns clockwise: left side forward, right side backward.
func (r *Rotation) TurnTo(ctx context.Context, absoluteAngle float64, maxPower int) (res Result, err error) {
	maxPower = resolveMaxPower(maxPower, r.cfg.DefaultMaxPower)
	trigger := r.cfg.ClampTrigger
	if trigger <= 0 {
		trigger = maxPower
	}
	guard := newLoopGuard(r.cfg.Bounds, r.clock)

	current := r.heading.Heading()
	desired := absoluteAngle - current
	angErr := r.headingError(absoluteAngle, desired, current)

	defer func() {
		if stopErr := r.drive.Apply(0, 0); stopErr != nil {
			err = multierr.Append(err, errors.Wrap(stopErr, "failed to stop drive"))
		}
		res.Iterations = guard.iterations
		res.FinalError = angErr
		res.Elapsed = r.clock.Since(guard.start)
		r.Reporter.ReportMotion(Status{
			Controller: "rotation",
			Target:     absoluteAngle,
			Current:    current,
			Error:      angErr,
			Iteration:  res.Iterations,
		})
		if err != nil {
			r.log.Warnw("Turn stopped early", "target", absoluteAngle, "error", angErr,
				"iterations", res.Iterations, "elapsed", res.Elapsed, "err", err)
			return
		}
		r.log.Infow("Turn done", "target", absoluteAngle, "error", angErr,
			"iterations", res.Iterations, "elapsed", res.Elapsed)
	}()

	for math.Abs(angErr) > r.cfg.Epsilon {
		if err = guard.next(ctx, angErr); err != nil {
			return res, err
		}

		power := saturate(proportional(angErr, r.cfg.Kp), trigger, maxPower)
		if err = r.drive.Apply(power, -power); err != nil {
			return res, errors.Wrap(err, "failed to set drive power")
		}
		r.log.Debugw("Turn", "target", absoluteAngle, "heading", current, "error", angErr, "power", power)
		r.Reporter.ReportMotion(Status{
			Controller: "rotation",
			Target:     absoluteAngle,
			Current:    current,
			Error:      angErr,
			Power:      power,
			Iteration:  guard.iterations,
		})

		if err = guard.wait(ctx); err != nil {
			return res, err
		}
		current = r.heading.Heading()
		if current > 180 {
			current -= 360
		}
		angErr = r.headingError(absoluteAngle, desired, current)
	}
	return res, nil
}

func (r *Rotation) headingError(absoluteAngle, desired, current float64) float64 {
	if r.cfg.ErrorLaw == SnapshotLaw {
		return angle.Normalize(desired - current)
	}
	return angle.Normalize(absoluteAngle - current)
}
