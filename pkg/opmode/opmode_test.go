package opmode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/joystick"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/screen"
)

type fakeRobot struct {
	lock sync.Mutex

	left, right int
	intake      int
	upper       int
	lower       int
	wings       []bool
	stops       int

	intakeErr error
}

func (f *fakeRobot) ApplyDrive(left, right int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.left, f.right = left, right
	return nil
}

func (f *fakeRobot) SetIntake(rpm int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.intake = rpm
	return f.intakeErr
}

func (f *fakeRobot) SetFlywheels(upper, lower int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.upper, f.lower = upper, lower
	return nil
}

func (f *fakeRobot) SetWings(extended bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.wings = append(f.wings, extended)
	return nil
}

func (f *fakeRobot) StopAll() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stops++
	return nil
}

func (f *fakeRobot) HeadingDegrees() float64 {
	return 42.5
}

func (f *fakeRobot) Positions() (float64, float64, error) {
	return 100, 120, nil
}

func (f *fakeRobot) flywheels() (int, int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.upper, f.lower
}

func press(m *Mode, button uint8) {
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: button, Value: 1})
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: button, Value: 0})
}

func dpad(m *Mode, axis uint8, value int16) {
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: axis, Value: value})
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: axis, Value: 0})
}

func newTestMode() (*Mode, *fakeRobot, *clock.Mock, *screen.Screen) {
	r := &fakeRobot{}
	mock := clock.NewMock()
	scr := screen.New(nil)
	m := New(r, scr, DefaultConfig(), mock, nil)
	m.upperRPM, m.lowerRPM = m.cfg.FlywheelIdleRPM, m.cfg.FlywheelIdleRPM
	return m, r, mock, scr
}

func TestDefaultConfigValid(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)

	cfg := DefaultConfig()
	cfg.TestRPMMin = 10
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg = DefaultConfig()
	cfg.MaxDrivePower = 200
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestArcadeDrive(t *testing.T) {
	m, r, _, _ := newTestMode()

	// Full forward on the left stick.
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisLStickY, Value: -32767})
	m.tick()
	test.That(t, r.left, test.ShouldEqual, 127)
	test.That(t, r.right, test.ShouldEqual, 127)

	// Half right turn while driving forward saturates the left side.
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisRStickX, Value: 16384})
	m.tick()
	test.That(t, r.left, test.ShouldEqual, 127)
	test.That(t, r.right, test.ShouldEqual, 63)

	// Turn on the spot.
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisLStickY, Value: 0})
	m.tick()
	test.That(t, r.left, test.ShouldEqual, 64)
	test.That(t, r.right, test.ShouldEqual, -64)
}

func TestIntakeButtons(t *testing.T) {
	m, r, _, _ := newTestMode()

	m.tick()
	test.That(t, r.intake, test.ShouldEqual, 100)

	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: ButtonIntakeIn, Value: 1})
	m.tick()
	test.That(t, r.intake, test.ShouldEqual, 600)

	// R1 wins over R2.
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: ButtonIntakeOut, Value: 1})
	m.tick()
	test.That(t, r.intake, test.ShouldEqual, 600)

	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: ButtonIntakeIn, Value: 0})
	m.tick()
	test.That(t, r.intake, test.ShouldEqual, -600)
}

func TestFlywheelSequence(t *testing.T) {
	m, r, mock, _ := newTestMode()

	m.tick()
	u, l := r.flywheels()
	test.That(t, u, test.ShouldEqual, 10)
	test.That(t, l, test.ShouldEqual, 10)

	press(m, ButtonFlywheelsOn)
	m.tick()
	u, l = r.flywheels()
	test.That(t, u, test.ShouldEqual, -120)
	test.That(t, l, test.ShouldEqual, -500)

	press(m, ButtonFlywheelsOff)
	m.tick()
	u, l = r.flywheels()
	test.That(t, u, test.ShouldEqual, 0)
	test.That(t, l, test.ShouldEqual, 0)

	mock.Add(3 * time.Second)
	m.tick()
	u, _ = r.flywheels()
	test.That(t, u, test.ShouldEqual, 0)

	mock.Add(time.Millisecond)
	m.tick()
	u, l = r.flywheels()
	test.That(t, u, test.ShouldEqual, 10)
	test.That(t, l, test.ShouldEqual, 10)
}

func TestFlywheelsOnCancelsRest(t *testing.T) {
	m, r, mock, _ := newTestMode()

	press(m, ButtonFlywheelsOff)
	m.tick()
	press(m, ButtonFlywheelsOn)
	m.tick()
	mock.Add(5 * time.Second)
	m.tick()

	u, l := r.flywheels()
	test.That(t, u, test.ShouldEqual, -120)
	test.That(t, l, test.ShouldEqual, -500)
}

func TestTestSpeedAdjustment(t *testing.T) {
	m, r, _, scr := newTestMode()

	dpad(m, joystick.AxisDPadY, -32767) // up: upper faster
	m.tick()
	dpad(m, joystick.AxisDPadX, 32767) // right: lower faster
	m.tick()
	dpad(m, joystick.AxisDPadX, 32767)
	m.tick()
	test.That(t, m.upperTest.Get(), test.ShouldEqual, -130)
	test.That(t, m.lowerTest.Get(), test.ShouldEqual, -520)

	// Adjusting doesn't change the running speed until the flywheels are
	// switched on again.
	u, _ := r.flywheels()
	test.That(t, u, test.ShouldEqual, 10)
	press(m, ButtonFlywheelsOn)
	m.tick()
	u, l := r.flywheels()
	test.That(t, u, test.ShouldEqual, -130)
	test.That(t, l, test.ShouldEqual, -520)

	lines := scr.Lines()
	test.That(t, lines[0], test.ShouldEqual, "Angle: 42.5")
	test.That(t, lines[2], test.ShouldEqual, "Upper Speed: 130")
	test.That(t, lines[3], test.ShouldEqual, "Lower Speed: 520")
	test.That(t, lines[4], test.ShouldEqual, "Left position: 100")
	test.That(t, lines[5], test.ShouldEqual, "Right position: 120")
}

func TestTestSpeedLimits(t *testing.T) {
	m, _, _, _ := newTestMode()

	for i := 0; i < 20; i++ {
		dpad(m, joystick.AxisDPadY, 32767) // down: upper slower
		m.tick()
	}
	test.That(t, m.upperTest.Get(), test.ShouldEqual, 0)

	for i := 0; i < 20; i++ {
		dpad(m, joystick.AxisDPadX, 32767)
		m.tick()
	}
	test.That(t, m.lowerTest.Get(), test.ShouldEqual, -600)
}

func TestWings(t *testing.T) {
	m, r, _, _ := newTestMode()

	m.tick()
	test.That(t, r.wings, test.ShouldBeEmpty)

	press(m, ButtonWingsOut)
	m.tick()
	press(m, ButtonWingsIn)
	m.tick()
	// Out wins when both are pressed in the same tick.
	press(m, ButtonWingsOut)
	press(m, ButtonWingsIn)
	m.tick()
	test.That(t, r.wings, test.ShouldResemble, []bool{true, false, true})
}

func TestOutputErrorsLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := &fakeRobot{intakeErr: errors.New("port 10 unplugged")}
	m := New(r, nil, DefaultConfig(), clock.NewMock(), zap.New(core).Sugar())

	m.tick()
	m.tick()
	m.tick()
	test.That(t, logs.FilterMessage("Operator control output failed").Len(), test.ShouldEqual, 1)
}

func TestStartStop(t *testing.T) {
	r := &fakeRobot{}
	m := New(r, nil, DefaultConfig(), clock.New(), nil)

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Stop()

	r.lock.Lock()
	defer r.lock.Unlock()
	test.That(t, r.stops, test.ShouldEqual, 1)
	test.That(t, r.intake, test.ShouldEqual, 100)
}
