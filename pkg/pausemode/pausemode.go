package pausemode

import (
	"context"

	"go.uber.org/zap"
)

type Stopper interface {
	StopAll() error
}

// PauseMode is the disabled phase: every motor is stopped on entry.
type PauseMode struct {
	Robot Stopper
	Log   *zap.SugaredLogger
}

func (t *PauseMode) Name() string {
	return "Pause mode"
}

func (t *PauseMode) StartupSound() string {
	return "pause"
}

func (t *PauseMode) Start(ctx context.Context) {
	if err := t.Robot.StopAll(); err != nil && t.Log != nil {
		t.Log.Errorw("Failed to stop robot", "err", err)
	}
}

func (t *PauseMode) Stop() {
}
