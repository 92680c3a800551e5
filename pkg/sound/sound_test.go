package sound

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

func TestPath(t *testing.T) {
	p := &Player{dir: "/sounds"}
	test.That(t, p.path("start"), test.ShouldEqual, "/sounds/start.wav")
	test.That(t, p.path("beep.wav"), test.ShouldEqual, "/sounds/beep.wav")
	test.That(t, p.path("/tmp/x.wav"), test.ShouldEqual, "/tmp/x.wav")
}

func TestPlayerWithoutDirDropsSounds(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewPlayer("", zap.New(core).Sugar())
	p.Play("start")
	p.Close()
	p.Close()

	dropped := logs.FilterMessage("Unable to play sound").All()
	test.That(t, len(dropped), test.ShouldEqual, 1)
	test.That(t, dropped[0].ContextMap()["sound"], test.ShouldEqual, "start")
}
