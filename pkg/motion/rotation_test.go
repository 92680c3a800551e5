package motion

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

// simHeading turns by degreesPerPower times the last applied left power on
// each read after the first.
type simHeading struct {
	drive           *recordingDrive
	heading         float64
	degreesPerPower float64
	reads           int
}

func (h *simHeading) Heading() float64 {
	if h.reads > 0 {
		h.heading += float64(h.drive.last()[0]) * h.degreesPerPower
	}
	h.reads++
	return h.heading
}

func tightRotationConfig() RotationConfig {
	cfg := DefaultConfig().Rotation
	cfg.PollInterval = 0
	cfg.MaxDuration = 0
	cfg.MaxIterations = 1000
	return cfg
}

func TestTurnToScenario(t *testing.T) {
	drive := &recordingDrive{}
	h := &simHeading{drive: drive, degreesPerPower: 0.5}
	r := NewRotation(drive, h, tightRotationConfig(), clock.NewMock(), nil)

	res, err := r.TurnTo(context.Background(), 90, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(res.FinalError), test.ShouldBeLessThanOrEqualTo, 2)
	test.That(t, h.heading, test.ShouldBeBetweenOrEqual, 88, 92)

	test.That(t, drive.last(), test.ShouldResemble, [2]int{0, 0})
	test.That(t, len(drive.pairs), test.ShouldEqual, res.Iterations+1)
	for _, p := range drive.pairs {
		test.That(t, p[1], test.ShouldEqual, -p[0])
		test.That(t, p[0], test.ShouldBeLessThanOrEqualTo, 50)
	}
	test.That(t, drive.pairs[0], test.ShouldResemble, [2]int{50, -50})
}

func TestTurnToAntiClockwise(t *testing.T) {
	drive := &recordingDrive{}
	h := &simHeading{drive: drive, degreesPerPower: 0.5}
	r := NewRotation(drive, h, tightRotationConfig(), clock.NewMock(), nil)

	_, err := r.TurnTo(context.Background(), -45, 40)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.heading, test.ShouldBeBetweenOrEqual, -47, -43)
	test.That(t, drive.pairs[0], test.ShouldResemble, [2]int{-36, 36})
}

func TestTurnToTakesShortestWay(t *testing.T) {
	drive := &recordingDrive{}
	h := &simHeading{drive: drive, heading: 170, degreesPerPower: 0.5}
	r := NewRotation(drive, h, tightRotationConfig(), clock.NewMock(), nil)

	// From 170 to -170 is 20 degrees clockwise.
	_, err := r.TurnTo(context.Background(), -170, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, drive.pairs[0], test.ShouldResemble, [2]int{16, -16})
	test.That(t, h.heading, test.ShouldBeBetweenOrEqual, 188, 192)
}

func TestTurnToAlreadyThere(t *testing.T) {
	drive := &recordingDrive{}
	h := &simHeading{drive: drive, heading: 0.5, degreesPerPower: 0.5}
	r := NewRotation(drive, h, tightRotationConfig(), clock.NewMock(), nil)

	res, err := r.TurnTo(context.Background(), 2, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Iterations, test.ShouldEqual, 0)
	test.That(t, drive.pairs, test.ShouldResemble, [][2]int{{0, 0}})
}

func TestTurnToSnapshotLaw(t *testing.T) {
	for _, tc := range []struct {
		law   ErrorLaw
		power int
	}{
		// error = Normalize(50 - 10) = 40 => 32.
		{AbsoluteLaw, 32},
		// error = Normalize((50 - 10) - 10) = 30 => 24.
		{SnapshotLaw, 24},
	} {
		drive := &recordingDrive{}
		h := &simHeading{drive: drive, heading: 10}
		cfg := tightRotationConfig()
		cfg.ErrorLaw = tc.law
		cfg.MaxIterations = 1
		r := NewRotation(drive, h, cfg, clock.NewMock(), nil)

		_, err := r.TurnTo(context.Background(), 50, 50)
		test.That(t, errors.Is(err, ErrDidNotConverge), test.ShouldBeTrue)
		test.That(t, drive.pairs[0], test.ShouldResemble, [2]int{tc.power, -tc.power})
	}
}

func TestTurnToSnapshotLawSettlesShort(t *testing.T) {
	// With the snapshot law the turn from 10 to 50 settles where
	// (50 - 10) - heading is within epsilon, i.e. near 40 rather than 50.
	drive := &recordingDrive{}
	h := &simHeading{drive: drive, heading: 10, degreesPerPower: 0.5}
	r := NewRotation(drive, h, ParityConfig().Rotation, clock.New(), nil)

	_, err := r.TurnTo(context.Background(), 50, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.heading, test.ShouldBeBetweenOrEqual, 38, 42)
}

func TestTurnToClampTrigger(t *testing.T) {
	for _, tc := range []struct {
		name     string
		trigger  int
		target   float64
		maxPower int
		power    int
	}{
		{"unified below limit", 0, 25, 20, 20},
		{"unified above limit", 0, 50, 20, 20},
		{"parity below trigger passes through", 30, 31.25, 20, 25},
		{"parity above trigger clamps", 30, 50, 20, 20},
		{"parity clamps up to max", 30, 50, 60, 60},
	} {
		t.Run(tc.name, func(t *testing.T) {
			drive := &recordingDrive{}
			h := &simHeading{drive: drive}
			cfg := tightRotationConfig()
			cfg.ClampTrigger = tc.trigger
			cfg.MaxIterations = 1
			r := NewRotation(drive, h, cfg, clock.NewMock(), nil)

			_, err := r.TurnTo(context.Background(), tc.target, tc.maxPower)
			test.That(t, errors.Is(err, ErrDidNotConverge), test.ShouldBeTrue)
			test.That(t, drive.pairs[0], test.ShouldResemble, [2]int{tc.power, -tc.power})
		})
	}
}

func TestTurnToWrapsRawHeading(t *testing.T) {
	// A heading of 350 is treated as -10.
	drive := &recordingDrive{}
	h := &fixedHeading{headings: []float64{0, 350}}
	cfg := tightRotationConfig()
	cfg.MaxIterations = 1
	r := NewRotation(drive, h, cfg, clock.NewMock(), nil)

	res, err := r.TurnTo(context.Background(), -10, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.FinalError, test.ShouldEqual, 0)
}

func TestTurnToTimesOut(t *testing.T) {
	drive := &recordingDrive{}
	cfg := tightRotationConfig()
	cfg.MaxIterations = 0
	cfg.MaxDuration = 20 * time.Millisecond
	cfg.PollInterval = time.Millisecond
	r := NewRotation(drive, &simHeading{drive: drive}, cfg, clock.New(), nil)

	res, err := r.TurnTo(context.Background(), 90, 50)
	test.That(t, errors.Is(err, ErrDidNotConverge), test.ShouldBeTrue)
	test.That(t, res.FinalError, test.ShouldEqual, 90)
	test.That(t, drive.last(), test.ShouldResemble, [2]int{0, 0})
}

func TestTurnToCancelledWhilePolling(t *testing.T) {
	drive := &recordingDrive{}
	cfg := tightRotationConfig()
	cfg.PollInterval = time.Hour
	r := NewRotation(drive, &simHeading{drive: drive}, cfg, clock.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.TurnTo(ctx, 90, 50)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, drive.pairs, test.ShouldResemble, [][2]int{{50, -50}, {0, 0}})
}

type fixedHeading struct {
	headings []float64
}

func (f *fixedHeading) Heading() float64 {
	h := f.headings[0]
	if len(f.headings) > 1 {
		f.headings = f.headings[1:]
	}
	return h
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
	test.That(t, ParityConfig().Validate(), test.ShouldBeNil)

	c := DefaultConfig()
	c.Linear.Kp = 0
	test.That(t, c.Validate(), test.ShouldNotBeNil)

	c = DefaultConfig()
	c.Rotation.ErrorLaw = "sideways"
	test.That(t, c.Validate(), test.ShouldNotBeNil)

	c = DefaultConfig()
	c.Rotation.DefaultMaxPower = 200
	test.That(t, c.Validate(), test.ShouldNotBeNil)

	c = DefaultConfig()
	c.Linear.MaxDuration = -time.Second
	test.That(t, c.Validate(), test.ShouldNotBeNil)
}
