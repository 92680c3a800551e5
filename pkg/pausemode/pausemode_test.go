package pausemode

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

type stopper struct {
	stops int
	err   error
}

func (s *stopper) StopAll() error {
	s.stops++
	return s.err
}

func TestStartStopsRobot(t *testing.T) {
	s := &stopper{}
	m := &PauseMode{Robot: s}
	m.Start(context.Background())
	m.Stop()
	test.That(t, s.stops, test.ShouldEqual, 1)
}

func TestStopFailureLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := &stopper{err: errors.New("hub gone")}
	m := &PauseMode{Robot: s, Log: zap.New(core).Sugar()}
	m.Start(context.Background())
	test.That(t, logs.Len(), test.ShouldEqual, 1)
}
