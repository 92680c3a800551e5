package motorhub

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/kr/pty"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultFlashTool  = "hubflash"
	DefaultFirmware   = "/motorhub.bin"
	firmwareBootDelay = 250 * time.Millisecond
)

// Flash loads firmware onto the hub with the vendor flashing tool.  The tool
// only boots the hub when it thinks it is talking to a terminal, so it is run
// under a PTY.  Tool output goes to out, if non-nil.
func Flash(ctx context.Context, tool, firmware string, out io.Writer, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if tool == "" {
		tool = DefaultFlashTool
	}
	if firmware == "" {
		firmware = DefaultFirmware
	}

	log.Infow("Flashing the motor hub", "tool", tool, "firmware", firmware)
	cmd := exec.CommandContext(ctx, tool, firmware)
	f, err := pty.Start(cmd)
	if err != nil {
		return errors.Wrapf(err, "failed to start %s", tool)
	}
	defer f.Close()

	if out == nil {
		out = io.Discard
	}
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, _ = io.Copy(out, f)
	}()

	err = cmd.Wait()
	_ = f.Close()
	<-copyDone
	if err != nil {
		return errors.Wrapf(err, "%s failed", tool)
	}
	log.Info("Flashed the motor hub")

	// Give the hub time to boot.
	select {
	case <-time.After(firmwareBootDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
