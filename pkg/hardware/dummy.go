package hardware

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/heading"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
)

// SimConfig describes the kinematics of the dummy robot.  Encoder positions
// integrate motor power over time; the heading follows the difference between
// one reference motor on each side.
type SimConfig struct {
	CountsPerPowerSecond float64 `yaml:"countsPerPowerSecond"`
	CountsPerRPMSecond   float64 `yaml:"countsPerRPMSecond"`

	LeftPort      int  `yaml:"leftPort"`
	LeftReversed  bool `yaml:"leftReversed"`
	RightPort     int  `yaml:"rightPort"`
	RightReversed bool `yaml:"rightReversed"`
	// DegreesPerCount is the clockwise rotation per count of difference
	// between the left and right encoders.
	DegreesPerCount float64 `yaml:"degreesPerCount"`

	BatteryVolts float64 `yaml:"batteryVolts"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		CountsPerPowerSecond: 20,
		CountsPerRPMSecond:   15,
		LeftPort:             11,
		LeftReversed:         true,
		RightPort:            20,
		DegreesPerCount:      0.1,
		BatteryVolts:         12.4,
	}
}

// Dummy simulates the robot without any hardware.
type Dummy struct {
	cfg   SimConfig
	clock clock.Clock
	log   *zap.SugaredLogger

	lock        sync.Mutex
	motors      map[int]*simMotor
	pistons     map[string]*simPiston
	headingBase float64
	sounds      []string
}

var _ Interface = (*Dummy)(nil)

func NewDummy(cfg SimConfig, clk clock.Clock, log *zap.SugaredLogger) *Dummy {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dummy{
		cfg:     cfg,
		clock:   clk,
		log:     log,
		motors:  map[int]*simMotor{},
		pistons: map[string]*simPiston{},
	}
}

func (d *Dummy) Start(ctx context.Context) error {
	d.log.Info("DHW: Start")
	return nil
}

func (d *Dummy) Motor(port int) (Motor, error) {
	if port < 1 || port > motorhub.NumPorts {
		return nil, errors.Wrapf(motorhub.ErrBadPort, "port %d", port)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.motorLocked(port), nil
}

func (d *Dummy) motorLocked(port int) *simMotor {
	m, ok := d.motors[port]
	if !ok {
		m = &simMotor{d: d, port: port, last: d.clock.Now()}
		d.motors[port] = m
	}
	return m
}

func (d *Dummy) Piston(name string) (Piston, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	p, ok := d.pistons[name]
	if !ok {
		p = &simPiston{d: d, name: name}
		d.pistons[name] = p
	}
	return p, nil
}

func (d *Dummy) RotationSensor() heading.RotationSensor {
	return (*simIMU)(d)
}

func (d *Dummy) BatteryVolts() float64 {
	return d.cfg.BatteryVolts
}

func (d *Dummy) PlaySound(name string) {
	d.log.Infow("DHW: PlaySound", "sound", name)
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sounds = append(d.sounds, name)
}

// SoundsPlayed returns the names passed to PlaySound so far.
func (d *Dummy) SoundsPlayed() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.sounds...)
}

func (d *Dummy) StopAll() error {
	d.log.Info("DHW: StopAll")
	d.lock.Lock()
	defer d.lock.Unlock()
	for _, m := range d.motors {
		m.advanceLocked()
		m.power, m.rpm = 0, 0
	}
	return nil
}

func (d *Dummy) Shutdown() {
	_ = d.StopAll()
	d.log.Info("DHW: Shutdown")
}

// MotorPower returns the last open-loop power set on port.
func (d *Dummy) MotorPower(port int) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	if m, ok := d.motors[port]; ok {
		return m.power
	}
	return 0
}

// MotorRPM returns the last velocity target set on port.
func (d *Dummy) MotorRPM(port int) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	if m, ok := d.motors[port]; ok {
		return m.rpm
	}
	return 0
}

func (d *Dummy) MotorBrakeMode(port int) motorhub.BrakeMode {
	d.lock.Lock()
	defer d.lock.Unlock()
	if m, ok := d.motors[port]; ok {
		return m.brake
	}
	return motorhub.BrakeCoast
}

func (d *Dummy) PistonExtended(name string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if p, ok := d.pistons[name]; ok {
		return p.extended
	}
	return false
}

// rawHeadingLocked is the accumulated clockwise rotation in degrees.
func (d *Dummy) rawHeadingLocked() float64 {
	l := d.motorLocked(d.cfg.LeftPort)
	r := d.motorLocked(d.cfg.RightPort)
	l.advanceLocked()
	r.advanceLocked()
	lp, rp := l.position, r.position
	if d.cfg.LeftReversed {
		lp = -lp
	}
	if d.cfg.RightReversed {
		rp = -rp
	}
	return (lp - rp) / 2 * d.cfg.DegreesPerCount
}

type simMotor struct {
	d    *Dummy
	port int

	power    int
	rpm      int
	brake    motorhub.BrakeMode
	position float64
	last     time.Time
}

func (m *simMotor) advanceLocked() {
	now := m.d.clock.Now()
	dt := now.Sub(m.last).Seconds()
	m.last = now
	if m.rpm != 0 {
		m.position += float64(m.rpm) * m.d.cfg.CountsPerRPMSecond * dt
		return
	}
	m.position += float64(m.power) * m.d.cfg.CountsPerPowerSecond * dt
}

func (m *simMotor) Move(power int) error {
	m.d.lock.Lock()
	defer m.d.lock.Unlock()
	m.advanceLocked()
	if power > motorhub.MaxPower {
		power = motorhub.MaxPower
	} else if power < -motorhub.MaxPower {
		power = -motorhub.MaxPower
	}
	m.power, m.rpm = power, 0
	return nil
}

func (m *simMotor) MoveVelocity(rpm int) error {
	m.d.lock.Lock()
	defer m.d.lock.Unlock()
	m.advanceLocked()
	m.power, m.rpm = 0, rpm
	return nil
}

func (m *simMotor) Position() (float64, error) {
	m.d.lock.Lock()
	defer m.d.lock.Unlock()
	m.advanceLocked()
	return math.Round(m.position), nil
}

func (m *simMotor) SetBrakeMode(mode motorhub.BrakeMode) error {
	m.d.lock.Lock()
	defer m.d.lock.Unlock()
	m.brake = mode
	return nil
}

type simPiston struct {
	d        *Dummy
	name     string
	extended bool
}

func (p *simPiston) Set(extended bool) error {
	p.d.log.Infow("DHW: Piston", "piston", p.name, "extended", extended)
	p.d.lock.Lock()
	defer p.d.lock.Unlock()
	p.extended = extended
	return nil
}

type simIMU Dummy

// ReadHeading reports the simulated heading in [0, 360).
func (s *simIMU) ReadHeading() (float64, error) {
	d := (*Dummy)(s)
	d.lock.Lock()
	defer d.lock.Unlock()
	h := math.Mod(d.rawHeadingLocked()-d.headingBase, 360)
	if h < 0 {
		h += 360
	}
	return h, nil
}

// Reset recalibrates, making the current orientation read as 0.
func (s *simIMU) Reset() error {
	d := (*Dummy)(s)
	d.lock.Lock()
	defer d.lock.Unlock()
	d.headingBase = d.rawHeadingLocked()
	d.log.Info("DHW: IMU reset")
	return nil
}
