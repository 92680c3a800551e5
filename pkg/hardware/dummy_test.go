package hardware

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
)

func TestDummyMotorIntegratesPower(t *testing.T) {
	mock := clock.NewMock()
	d := NewDummy(DefaultSimConfig(), mock, nil)
	test.That(t, d.Start(context.Background()), test.ShouldBeNil)

	m, err := d.Motor(20)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Move(50), test.ShouldBeNil)
	mock.Add(time.Second)
	p, err := m.Position()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, 1000)

	test.That(t, m.Move(500), test.ShouldBeNil)
	test.That(t, d.MotorPower(20), test.ShouldEqual, motorhub.MaxPower)

	test.That(t, m.MoveVelocity(100), test.ShouldBeNil)
	mock.Add(time.Second)
	p, _ = m.Position()
	test.That(t, p, test.ShouldEqual, 2500)
	test.That(t, d.MotorRPM(20), test.ShouldEqual, 100)
	test.That(t, d.MotorPower(20), test.ShouldEqual, 0)

	test.That(t, d.StopAll(), test.ShouldBeNil)
	mock.Add(time.Second)
	p, _ = m.Position()
	test.That(t, p, test.ShouldEqual, 2500)

	test.That(t, m.SetBrakeMode(motorhub.BrakeHold), test.ShouldBeNil)
	test.That(t, d.MotorBrakeMode(20), test.ShouldEqual, motorhub.BrakeHold)
}

func TestDummyBadPort(t *testing.T) {
	d := NewDummy(DefaultSimConfig(), clock.NewMock(), nil)
	_, err := d.Motor(0)
	test.That(t, errors.Is(err, motorhub.ErrBadPort), test.ShouldBeTrue)
}

func TestDummyHeadingFollowsDifferentialDrive(t *testing.T) {
	mock := clock.NewMock()
	cfg := DefaultSimConfig()
	d := NewDummy(cfg, mock, nil)
	imu := d.RotationSensor()

	h, err := imu.ReadHeading()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h, test.ShouldEqual, 0)

	left, _ := d.Motor(cfg.LeftPort)
	right, _ := d.Motor(cfg.RightPort)

	// Clockwise: left side forwards (reversed motor), right side backwards.
	test.That(t, left.Move(-50), test.ShouldBeNil)
	test.That(t, right.Move(-50), test.ShouldBeNil)
	mock.Add(500 * time.Millisecond)
	h, _ = imu.ReadHeading()
	test.That(t, h, test.ShouldAlmostEqual, 50)

	// Anticlockwise past zero wraps to [0, 360).
	test.That(t, left.Move(50), test.ShouldBeNil)
	test.That(t, right.Move(50), test.ShouldBeNil)
	mock.Add(time.Second)
	h, _ = imu.ReadHeading()
	test.That(t, h, test.ShouldAlmostEqual, 310)

	test.That(t, d.StopAll(), test.ShouldBeNil)
	test.That(t, imu.Reset(), test.ShouldBeNil)
	h, _ = imu.ReadHeading()
	test.That(t, h, test.ShouldAlmostEqual, 0)
}

func TestDummyPistonsAndSounds(t *testing.T) {
	d := NewDummy(DefaultSimConfig(), clock.NewMock(), nil)
	p, err := d.Piston("A")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.PistonExtended("A"), test.ShouldBeFalse)
	test.That(t, p.Set(true), test.ShouldBeNil)
	test.That(t, d.PistonExtended("A"), test.ShouldBeTrue)

	d.PlaySound("start")
	d.PlaySound("done")
	test.That(t, d.SoundsPlayed(), test.ShouldResemble, []string{"start", "done"})
	test.That(t, d.BatteryVolts(), test.ShouldEqual, 12.4)
}
