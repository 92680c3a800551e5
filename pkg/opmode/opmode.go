// Package opmode is operator control: the driver steers with the sticks and
// runs the intake, flywheels and wings from the buttons.
package opmode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/joystick"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/tunable"
)

// Button mapping.
const (
	ButtonIntakeIn     = joystick.ButtonR1
	ButtonIntakeOut    = joystick.ButtonR2
	ButtonFlywheelsOn  = joystick.ButtonCross
	ButtonFlywheelsOff = joystick.ButtonSquare
	ButtonWingsOut     = joystick.ButtonL2
	ButtonWingsIn      = joystick.ButtonL1

	ButtonUpperFaster = joystick.ButtonDPadUp
	ButtonUpperSlower = joystick.ButtonDPadDown
	ButtonLowerFaster = joystick.ButtonDPadRight
	ButtonLowerSlower = joystick.ButtonDPadLeft
)

type Config struct {
	Tick          time.Duration `yaml:"tick"`
	MaxDrivePower int           `yaml:"maxDrivePower"`

	IntakeInRPM   int `yaml:"intakeInRPM"`
	IntakeOutRPM  int `yaml:"intakeOutRPM"`
	IntakeIdleRPM int `yaml:"intakeIdleRPM"`

	// The flywheels spin backwards, so faster is more negative.
	FlywheelIdleRPM int           `yaml:"flywheelIdleRPM"`
	UpperTestRPM    int           `yaml:"upperTestRPM"`
	LowerTestRPM    int           `yaml:"lowerTestRPM"`
	TestRPMStep     int           `yaml:"testRPMStep"`
	TestRPMMin      int           `yaml:"testRPMMin"`
	TestRPMMax      int           `yaml:"testRPMMax"`
	RestTime        time.Duration `yaml:"restTime"`
}

func DefaultConfig() Config {
	return Config{
		Tick:            20 * time.Millisecond,
		MaxDrivePower:   127,
		IntakeInRPM:     600,
		IntakeOutRPM:    -600,
		IntakeIdleRPM:   100,
		FlywheelIdleRPM: 10,
		UpperTestRPM:    -120,
		LowerTestRPM:    -500,
		TestRPMStep:     10,
		TestRPMMin:      -600,
		TestRPMMax:      0,
		RestTime:        3 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Tick <= 0 {
		return errors.New("opcontrol tick must be positive")
	}
	if c.MaxDrivePower <= 0 || c.MaxDrivePower > 127 {
		return errors.Errorf("opcontrol maxDrivePower %d out of range (0, 127]", c.MaxDrivePower)
	}
	if c.TestRPMMin > c.TestRPMMax {
		return errors.Errorf("opcontrol testRPMMin %d > testRPMMax %d", c.TestRPMMin, c.TestRPMMax)
	}
	if c.TestRPMStep <= 0 {
		return errors.New("opcontrol testRPMStep must be positive")
	}
	return nil
}

// Robot is what operator control drives; *robot.Robot implements it.
type Robot interface {
	ApplyDrive(left, right int) error
	SetIntake(rpm int) error
	SetFlywheels(upper, lower int) error
	SetWings(extended bool) error
	StopAll() error
	HeadingDegrees() float64
	Positions() (left, right float64, err error)
}

type Display interface {
	SetText(n int, format string, args ...interface{})
}

type Mode struct {
	robot   Robot
	display Display
	cfg     Config
	clock   clock.Clock
	log     *zap.SugaredLogger

	joystick *joystick.State
	tunables tunable.Tunables

	upperTest *tunable.Tunable
	lowerTest *tunable.Tunable

	cancel context.CancelFunc
	stopWG sync.WaitGroup

	// Loop state, only touched by the loop goroutine.
	upperRPM, lowerRPM int
	restingSince       time.Time
	lastErr            string
}

func New(r Robot, display Display, cfg Config, clk clock.Clock, log *zap.SugaredLogger) *Mode {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Mode{
		robot:    r,
		display:  display,
		cfg:      cfg,
		clock:    clk,
		log:      log,
		joystick: joystick.NewState(),
	}
	m.tunables.Log = log
	m.upperTest = m.tunables.Create("upper flywheel", cfg.UpperTestRPM, cfg.TestRPMMin, cfg.TestRPMMax)
	m.lowerTest = m.tunables.Create("lower flywheel", cfg.LowerTestRPM, cfg.TestRPMMin, cfg.TestRPMMax)
	return m
}

func (m *Mode) Name() string {
	return "Operator control"
}

func (m *Mode) StartupSound() string {
	return "opcontrol"
}

// OnJoystickEvent never blocks.
func (m *Mode) OnJoystickEvent(event *joystick.Event) {
	m.joystick.Apply(event)
}

func (m *Mode) Start(ctx context.Context) {
	m.upperRPM, m.lowerRPM = m.cfg.FlywheelIdleRPM, m.cfg.FlywheelIdleRPM
	m.restingSince = time.Time{}

	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *Mode) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.stopWG.Wait()
	m.cancel = nil
}

func (m *Mode) loop(ctx context.Context) {
	defer m.stopWG.Done()
	defer func() {
		if err := m.robot.StopAll(); err != nil {
			m.log.Errorw("Failed to stop robot", "err", err)
		}
	}()

	ticker := m.clock.Ticker(m.cfg.Tick)
	defer ticker.Stop()
	for {
		m.tick()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick does one pass of reading the controls and updating the outputs.
func (m *Mode) tick() {
	now := m.clock.Now()
	m.updateDisplay()

	left, right := m.arcade()
	m.check("drive", m.robot.ApplyDrive(left, right))

	intake := m.cfg.IntakeIdleRPM
	if m.joystick.Button(ButtonIntakeIn) {
		intake = m.cfg.IntakeInRPM
	} else if m.joystick.Button(ButtonIntakeOut) {
		intake = m.cfg.IntakeOutRPM
	}
	m.check("intake", m.robot.SetIntake(intake))

	if m.joystick.NewPress(ButtonFlywheelsOn) {
		m.upperRPM, m.lowerRPM = m.upperTest.Get(), m.lowerTest.Get()
		m.restingSince = time.Time{}
		m.log.Infow("Flywheels on", "upper", m.upperRPM, "lower", m.lowerRPM)
	} else if m.joystick.NewPress(ButtonFlywheelsOff) {
		m.upperRPM, m.lowerRPM = 0, 0
		m.restingSince = now
		m.log.Info("Flywheels resting")
	}

	if m.joystick.NewPress(ButtonUpperFaster) {
		m.upperTest.Add(-m.cfg.TestRPMStep)
	} else if m.joystick.NewPress(ButtonUpperSlower) {
		m.upperTest.Add(m.cfg.TestRPMStep)
	}
	if m.joystick.NewPress(ButtonLowerFaster) {
		m.lowerTest.Add(-m.cfg.TestRPMStep)
	} else if m.joystick.NewPress(ButtonLowerSlower) {
		m.lowerTest.Add(m.cfg.TestRPMStep)
	}

	if !m.restingSince.IsZero() && now.Sub(m.restingSince) > m.cfg.RestTime {
		m.upperRPM, m.lowerRPM = m.cfg.FlywheelIdleRPM, m.cfg.FlywheelIdleRPM
		m.restingSince = time.Time{}
	}
	m.check("flywheels", m.robot.SetFlywheels(m.upperRPM, m.lowerRPM))

	if m.joystick.NewPress(ButtonWingsOut) {
		m.check("wings", m.robot.SetWings(true))
	} else if m.joystick.NewPress(ButtonWingsIn) {
		m.check("wings", m.robot.SetWings(false))
	}
}

// arcade mixes the left stick's forward axis with the right stick's turn
// axis.
func (m *Mode) arcade() (left, right int) {
	max := float64(m.cfg.MaxDrivePower)
	// Stick up is negative.
	fwd := math.Round(-m.joystick.AxisFraction(joystick.AxisLStickY) * max)
	turn := math.Round(m.joystick.AxisFraction(joystick.AxisRStickX) * max)
	return clamp(fwd+turn, max), clamp(fwd-turn, max)
}

func clamp(v, limit float64) int {
	return int(math.Max(-limit, math.Min(limit, v)))
}

func (m *Mode) updateDisplay() {
	if m.display == nil {
		return
	}
	m.display.SetText(0, "Angle: %.1f", m.robot.HeadingDegrees())
	m.display.SetText(2, "Upper Speed: %d", abs(m.upperTest.Get()))
	m.display.SetText(3, "Lower Speed: %d", abs(m.lowerTest.Get()))
	left, right, err := m.robot.Positions()
	if err != nil {
		m.display.SetText(4, "Positions: %v", err)
		m.display.SetText(5, "")
		return
	}
	m.display.SetText(4, "Left position: %.0f", left)
	m.display.SetText(5, "Right position: %.0f", right)
}

// check logs failures once until they change, so a dead motor doesn't flood
// the log at the tick rate.
func (m *Mode) check(what string, err error) {
	if err == nil {
		return
	}
	msg := what + ": " + err.Error()
	if msg != m.lastErr {
		m.log.Warnw("Operator control output failed", "output", what, "err", err)
		m.lastErr = msg
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
