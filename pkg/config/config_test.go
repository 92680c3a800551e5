package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.viam.com/test"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/autonomous"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
)

func TestDefaultValid(t *testing.T) {
	test.That(t, Default().Validate(), test.ShouldBeNil)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pushbot.yaml")
	err := ioutil.WriteFile(path, []byte(`
motion:
  rotation:
    errorLaw: snapshot
    clampTrigger: 30
    maxDuration: 4s
ports:
  intake: 9
opcontrol:
  restTime: 1500ms
autonomous:
  steps:
  - kind: turn
    angle: 90
`), 0644)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := Load(path, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Motion.Rotation.ErrorLaw, test.ShouldEqual, motion.SnapshotLaw)
	test.That(t, cfg.Motion.Rotation.ClampTrigger, test.ShouldEqual, 30)
	test.That(t, cfg.Motion.Rotation.MaxDuration, test.ShouldEqual, 4*time.Second)
	// Fields not in the file keep their defaults.
	test.That(t, cfg.Motion.Rotation.Kp, test.ShouldEqual, Default().Motion.Rotation.Kp)
	test.That(t, cfg.Motion.Linear, test.ShouldResemble, Default().Motion.Linear)
	test.That(t, cfg.Ports.Intake, test.ShouldEqual, 9)
	test.That(t, cfg.Ports.LeftFront, test.ShouldEqual, 11)
	test.That(t, cfg.OpControl.RestTime, test.ShouldEqual, 1500*time.Millisecond)
	test.That(t, cfg.Autonomous.Steps, test.ShouldResemble, []autonomous.Step{autonomous.Turn(90)})
}

func TestParseRejectsBadConfig(t *testing.T) {
	for _, tc := range []struct {
		name, yaml, want string
	}{
		{"unknown key", "motion:\n  rotaton:\n    kp: 1\n", "rotaton"},
		{"clashing ports", "ports:\n  intake: 11\n", "ports"},
		{"bad gain", "motion:\n  linear:\n    kp: -1\n", "motion"},
		{"bad step", "autonomous:\n  steps:\n  - kind: wait\n", "autonomous"},
		{"bad reference", "drive:\n  reference: middle\n", "drive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			err := Parse([]byte(tc.yaml), &cfg)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.want)
		})
	}
}

func TestWriteInUseRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in-use.yaml")
	cfg := Default()
	cfg.Motion = motion.ParityConfig()
	test.That(t, cfg.WriteInUse(path), test.ShouldBeNil)

	loaded, err := Load(path, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, cfg)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(false, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, log.Desugar().Core().Enabled(zap.DebugLevel), test.ShouldBeFalse)

	log, err = NewLogger(true, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, log.Desugar().Core().Enabled(zap.DebugLevel), test.ShouldBeTrue)
}
