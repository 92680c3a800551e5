package pneumatics

import (
	"testing"

	"go.viam.com/test"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

func TestPistonSet(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17"}
	p := New("left wing", pin, nil)
	test.That(t, p.Extended(), test.ShouldBeFalse)

	test.That(t, p.Set(true), test.ShouldBeNil)
	test.That(t, pin.L, test.ShouldEqual, gpio.High)
	test.That(t, p.Extended(), test.ShouldBeTrue)

	test.That(t, p.Set(false), test.ShouldBeNil)
	test.That(t, pin.L, test.ShouldEqual, gpio.Low)
	test.That(t, p.Extended(), test.ShouldBeFalse)
}

func TestByNameUnknownPin(t *testing.T) {
	_, err := ByName("wing", "NO_SUCH_PIN", nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "NO_SUCH_PIN")
}
