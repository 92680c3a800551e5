package motion

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Linear drives the robot a commanded distance in a straight line using
// proportional control on one drive encoder.
type Linear struct {
	Reporter Reporter

	drive    Actuator
	position PositionSensor
	cfg      LinearConfig
	clock    clock.Clock
	log      *zap.SugaredLogger
}

// NewLinear returns a controller that drives both sides by the same power.
// A nil clk or log selects the real clock or a no-op logger.
func NewLinear(drive Actuator, position PositionSensor, cfg LinearConfig, clk clock.Clock, log *zap.SugaredLogger) *Linear {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Linear{
		Reporter: nopReporter{},
		drive:    drive,
		position: position,
		cfg:      cfg,
		clock:    clk,
		log:      log,
	}
}

// DriveStraight moves distance units forward (negative is backward), with the
// output power limited to ±maxPower.  maxPower <= 0 selects the configured
// default.
func (l *Linear) DriveStraight(ctx context.Context, distance float64, maxPower int) (res Result, err error) {
	maxPower = resolveMaxPower(maxPower, l.cfg.DefaultMaxPower)
	guard := newLoopGuard(l.cfg.Bounds, l.clock)

	var target, pos float64
	posErr := math.NaN()
	defer func() {
		if stopErr := l.drive.Apply(0, 0); stopErr != nil {
			err = multierr.Append(err, errors.Wrap(stopErr, "failed to stop drive"))
		}
		res.Iterations = guard.iterations
		res.FinalError = posErr
		res.Elapsed = l.clock.Since(guard.start)
		l.Reporter.ReportMotion(Status{
			Controller: "linear",
			Target:     target,
			Current:    pos,
			Error:      posErr,
			Iteration:  res.Iterations,
		})
		if err != nil {
			l.log.Warnw("Drive straight stopped early", "distance", distance, "error", posErr,
				"iterations", res.Iterations, "elapsed", res.Elapsed, "err", err)
			return
		}
		l.log.Infow("Drive straight done", "distance", distance, "error", posErr,
			"iterations", res.Iterations, "elapsed", res.Elapsed)
	}()

	pos, err = l.position.Position()
	if err != nil {
		return res, errors.Wrap(err, "failed to read start position")
	}
	target = pos + l.cfg.CountsPerUnit*distance
	posErr = target - pos

	for math.Abs(posErr) > l.cfg.Epsilon {
		if err = guard.next(ctx, posErr); err != nil {
			return res, err
		}

		power := saturate(proportional(posErr, l.cfg.Kp), maxPower, maxPower)
		if err = l.drive.Apply(power, power); err != nil {
			return res, errors.Wrap(err, "failed to set drive power")
		}
		l.log.Debugw("DS", "target", target, "position", pos, "error", posErr, "power", power)
		l.Reporter.ReportMotion(Status{
			Controller: "linear",
			Target:     target,
			Current:    pos,
			Error:      posErr,
			Power:      power,
			Iteration:  guard.iterations,
		})

		if err = guard.wait(ctx); err != nil {
			return res, err
		}
		pos, err = l.position.Position()
		if err != nil {
			return res, errors.Wrap(err, "failed to read position")
		}
		posErr = target - pos
	}
	return res, nil
}

// DriveTimed drives both sides at power for d, then stops.
func (l *Linear) DriveTimed(ctx context.Context, d time.Duration, power int) (err error) {
	defer func() {
		if stopErr := l.drive.Apply(0, 0); stopErr != nil {
			err = multierr.Append(err, errors.Wrap(stopErr, "failed to stop drive"))
		}
	}()

	l.log.Infow("Timed drive", "duration", d, "power", power)
	if err = l.drive.Apply(power, power); err != nil {
		return errors.Wrap(err, "failed to set drive power")
	}
	t := l.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
