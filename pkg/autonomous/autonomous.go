// Package autonomous runs a fixed sequence of steps without operator input.
package autonomous

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
)

// Robot is what the routine drives; *robot.Robot implements it.
type Robot interface {
	DriveStraight(ctx context.Context, distance float64, maxPower int) (motion.Result, error)
	TurnTo(ctx context.Context, absoluteAngle float64, maxPower int) (motion.Result, error)
	DriveTimed(ctx context.Context, d time.Duration, power int) error
	SetIntake(rpm int) error
	SetFlywheels(upper, lower int) error
	SetWings(extended bool) error
	StopAll() error
}

type Mode struct {
	robot Robot
	cfg   Config
	clock clock.Clock
	log   *zap.SugaredLogger

	cancel context.CancelFunc
	stopWG sync.WaitGroup

	lock    sync.Mutex
	lastErr error
}

func New(r Robot, cfg Config, clk clock.Clock, log *zap.SugaredLogger) *Mode {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Mode{
		robot: r,
		cfg:   cfg,
		clock: clk,
		log:   log,
	}
}

func (m *Mode) Name() string {
	return "Autonomous"
}

func (m *Mode) StartupSound() string {
	return "autonomous"
}

// Start runs the routine in the background.  The robot is stopped when the
// routine ends or the mode is stopped.
func (m *Mode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var runCtx context.Context
	runCtx, m.cancel = context.WithCancel(ctx)
	go func() {
		defer m.stopWG.Done()
		err := m.Run(runCtx)
		if stopErr := m.robot.StopAll(); stopErr != nil {
			m.log.Errorw("Failed to stop robot after autonomous", "err", stopErr)
		}
		m.lock.Lock()
		m.lastErr = err
		m.lock.Unlock()
	}()
}

func (m *Mode) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.stopWG.Wait()
	m.cancel = nil
}

// Err returns the result of the last completed run.
func (m *Mode) Err() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.lastErr
}

// Run executes the steps in order and returns when they are done.
func (m *Mode) Run(ctx context.Context) error {
	start := m.clock.Now()
	m.log.Infow("Autonomous started", "steps", len(m.cfg.Steps))
	for i, step := range m.cfg.Steps {
		m.log.Infow("Autonomous step", "n", i+1, "step", step.String())
		err := m.runStep(ctx, step)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			m.log.Infow("Autonomous interrupted", "n", i+1, "elapsed", m.clock.Since(start))
			return ctx.Err()
		}
		if errors.Is(err, motion.ErrDidNotConverge) && !m.cfg.AbortOnStall {
			m.log.Warnw("Step did not converge; carrying on", "n", i+1, "step", step.String(), "err", err)
			continue
		}
		return errors.Wrapf(err, "autonomous step %d (%v)", i+1, step)
	}
	m.log.Infow("Autonomous done", "elapsed", m.clock.Since(start))
	return nil
}

func (m *Mode) runStep(ctx context.Context, s Step) error {
	var err error
	switch s.Kind {
	case StepDrive:
		_, err = m.robot.DriveStraight(ctx, s.Distance, s.MaxPower)
	case StepTurn:
		_, err = m.robot.TurnTo(ctx, s.Angle, s.MaxPower)
	case StepTimed:
		err = m.robot.DriveTimed(ctx, s.Duration, s.Power)
	case StepIntake:
		err = m.robot.SetIntake(s.RPM)
	case StepFlywheels:
		err = m.robot.SetFlywheels(s.Upper, s.Lower)
	case StepWings:
		err = m.robot.SetWings(s.Extended)
	case StepWait:
		err = m.wait(ctx, s.Duration)
	default:
		err = errors.Errorf("unknown step kind %q", s.Kind)
	}
	return err
}

func (m *Mode) wait(ctx context.Context, d time.Duration) error {
	t := m.clock.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
