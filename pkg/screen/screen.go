package screen

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
)

const (
	S        = 128
	NumLines = 8

	DefaultDevice = "/dev/fb1"
	frameBytes    = S * S * 2
)

// Screen is the robot's small status display: NumLines lines of text set by
// the active mode, a battery bar and the latest motion controller status.
type Screen struct {
	log *zap.SugaredLogger

	lock         sync.Mutex
	lines        [NumLines]string
	batteryVolts float64
	motion       motion.Status
	haveMotion   bool
}

var _ motion.Reporter = (*Screen)(nil)

func New(log *zap.SugaredLogger) *Screen {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Screen{log: log}
}

// SetText sets line n; out-of-range lines are ignored.
func (s *Screen) SetText(n int, format string, args ...interface{}) {
	if n < 0 || n >= NumLines {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lines[n] = fmt.Sprintf(format, args...)
}

func (s *Screen) ClearLine(n int) {
	s.SetText(n, "")
}

func (s *Screen) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lines = [NumLines]string{}
	s.haveMotion = false
}

func (s *Screen) Lines() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.lines[:]...)
}

func (s *Screen) SetBatteryVolts(v float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.batteryVolts = v
}

func (s *Screen) ReportMotion(status motion.Status) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.motion = status
	s.haveMotion = true
}

func (s *Screen) LastMotion() (motion.Status, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.motion, s.haveMotion
}

func (s *Screen) Render() image.Image {
	s.lock.Lock()
	lines := s.lines
	voltage := s.batteryVolts
	status, haveMotion := s.motion, s.haveMotion
	s.lock.Unlock()

	dc := gg.NewContext(S, S)
	dc.SetRGBA(1, 0.9, 0, 1)

	for i, l := range lines {
		dc.DrawString(l, 2, float64(12+i*12))
	}
	if haveMotion {
		dc.DrawString(fmt.Sprintf("%.1s e=%.1f p=%d", status.Controller, status.Error, status.Power), 2, 110)
	}

	dc.Push()
	dc.Translate(96, 5)
	drawPowerBar(dc, voltage)
	dc.Pop()
	return dc.Image()
}

// LoopUpdating renders to the framebuffer at fbdev until ctx is done, then
// blanks it.
func (s *Screen) LoopUpdating(ctx context.Context, fbdev string) {
	if fbdev == "" {
		fbdev = DefaultDevice
	}
	f, err := os.OpenFile(fbdev, os.O_RDWR, 0666)
	if err != nil {
		s.log.Warnw("Failed to open screen, ignoring", "device", fbdev, "err", err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var buf [frameBytes]byte
			_ = writeFrame(f, buf[:])
			return
		case <-ticker.C:
		}
		if err := writeFrame(f, encodeRGB565(s.Render())); err != nil {
			s.log.Errorw("Screen failure", "err", err)
			return
		}
	}
}

func writeFrame(f io.WriteSeeker, buf []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	for i := 0; i < S; i++ {
		if _, err := f.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
			return err
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}

// encodeRGB565 converts to the panel's format.  The panel is mounted rotated,
// so columns of the image become rows of the framebuffer.
func encodeRGB565(img image.Image) []byte {
	buf := make([]byte, frameBytes)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}

const (
	minCellVoltage = 3
	maxCellVoltage = 4.2
)

// chargeFraction assumes a 3-cell pack.
func chargeFraction(voltage float64) float64 {
	cellVoltage := voltage / 3
	charge := (cellVoltage - minCellVoltage) / (maxCellVoltage - minCellVoltage)
	if charge < 0 {
		return 0
	}
	if charge > 1 {
		return 1
	}
	return charge
}

func drawPowerBar(dc *gg.Context, voltage float64) {
	charge := chargeFraction(voltage)

	if charge < 0.1 {
		dc.SetRGBA(1, 0.2, 0, 1)
	}
	dc.DrawRectangle(0, 70, 30, 10)
	for n := 2; n < 13; n++ {
		if charge >= (float64(n) / 13) {
			dc.DrawRectangle(2, 75-float64(n)*5, 26, 3)
		}
	}
	dc.Fill()
	dc.DrawString(fmt.Sprintf("%.1fv", voltage), -2, 93)
}
