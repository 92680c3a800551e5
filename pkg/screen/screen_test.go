package screen

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
)

func TestLines(t *testing.T) {
	s := New(nil)
	s.SetText(0, "Angle: %.1f", 12.34)
	s.SetText(NumLines, "ignored")
	s.SetText(-1, "ignored")
	s.SetText(2, "L: %d R: %d", 10, 20)

	lines := s.Lines()
	test.That(t, len(lines), test.ShouldEqual, NumLines)
	test.That(t, lines[0], test.ShouldEqual, "Angle: 12.3")
	test.That(t, lines[2], test.ShouldEqual, "L: 10 R: 20")

	s.ClearLine(0)
	test.That(t, s.Lines()[0], test.ShouldEqual, "")

	// Lines returns a copy.
	lines = s.Lines()
	lines[2] = "changed"
	test.That(t, s.Lines()[2], test.ShouldEqual, "L: 10 R: 20")
}

func TestReportMotion(t *testing.T) {
	s := New(nil)
	_, ok := s.LastMotion()
	test.That(t, ok, test.ShouldBeFalse)

	s.ReportMotion(motion.Status{Controller: "rotation", Error: 12.5, Power: 10})
	st, ok := s.LastMotion()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, st.Power, test.ShouldEqual, 10)

	s.Clear()
	_, ok = s.LastMotion()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRender(t *testing.T) {
	s := New(nil)
	s.SetText(0, "hello")
	s.SetBatteryVolts(12.0)
	img := s.Render()
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, S, S))
	test.That(t, len(encodeRGB565(img)), test.ShouldEqual, frameBytes)
}

func TestEncodeRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, S, S))
	img.Set(0, S-1, color.RGBA{R: 0xff, A: 0xff})
	img.Set(1, S-1, color.RGBA{G: 0xff, A: 0xff})
	img.Set(2, S-1, color.RGBA{B: 0xff, A: 0xff})

	buf := encodeRGB565(img)
	// Pixel (x, S-1) lands at offset x*S*2.
	test.That(t, buf[0:2], test.ShouldResemble, []byte{0x00, 0xf8})
	test.That(t, buf[S*2:S*2+2], test.ShouldResemble, []byte{0xe0, 0x07})
	test.That(t, buf[2*S*2:2*S*2+2], test.ShouldResemble, []byte{0x1f, 0x00})
}

func TestChargeFraction(t *testing.T) {
	test.That(t, chargeFraction(0), test.ShouldEqual, 0)
	test.That(t, chargeFraction(9), test.ShouldEqual, 0)
	test.That(t, chargeFraction(12.6), test.ShouldAlmostEqual, 1)
	test.That(t, chargeFraction(20), test.ShouldEqual, 1)
	test.That(t, chargeFraction(10.8), test.ShouldAlmostEqual, 0.5)
}
