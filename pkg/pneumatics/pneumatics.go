// Package pneumatics drives solenoid valves from GPIO pins.
package pneumatics

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// Piston is a single-acting cylinder behind a solenoid valve.  The valve is
// energised (pin high) to extend.
type Piston struct {
	name string
	pin  gpio.PinOut
	log  *zap.SugaredLogger

	lock     sync.Mutex
	extended bool
}

func New(name string, pin gpio.PinOut, log *zap.SugaredLogger) *Piston {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Piston{name: name, pin: pin, log: log}
}

// ByName looks up a GPIO pin by its periph name, e.g. "GPIO17".  The host
// drivers must already be initialised.
func ByName(name, pinName string, log *zap.SugaredLogger) (*Piston, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, errors.Errorf("no GPIO pin named %q for %s", pinName, name)
	}
	return New(name, p, log), nil
}

func (p *Piston) Set(extended bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	level := gpio.Low
	if extended {
		level = gpio.High
	}
	if err := p.pin.Out(level); err != nil {
		return errors.Wrapf(err, "failed to set %s", p.name)
	}
	if p.extended != extended {
		p.log.Debugw("Piston moved", "piston", p.name, "extended", extended)
	}
	p.extended = extended
	return nil
}

func (p *Piston) Extended() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.extended
}

func (p *Piston) Name() string {
	return p.name
}
