package motorhub

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/io/i2c"
)

// The motor hub is a microcontroller on the I2C bus driving up to NumPorts
// smart motors.  Every register is 16 bits, big endian.  Global registers
// come first; each port then has a block of portRegs registers.

const (
	DefaultAddr = 0x42
	NumPorts    = 21

	// MaxPower is the magnitude of full power for Move().
	MaxPower = 127
)

type Register byte

const (
	RegCtrl Register = iota
	RegStatus
	RegWatchdogTimeout
	RegFaultCount
	RegBattV // LSB=4mV
)

const (
	portBase Register = 0x10
	portRegs          = 4

	portRegPower    = 0 // signed, [-127, 127]
	portRegVelocity = 1 // signed RPM target
	portRegEncoder  = 2 // signed wrapping count
	portRegBrake    = 3 // BrakeMode
)

const BattVLSB = 0.004

const (
	RegCtrlEnable uint16 = 1 << iota
	RegCtrlReset
	RegCtrlWatchdogEnable
)

type StatusFlag uint16

const (
	RegStatusFault StatusFlag = 1 << iota
	RegStatusWatchdogExpired
)

type BrakeMode uint16

const (
	BrakeCoast BrakeMode = iota
	BrakeBrake
	BrakeHold
)

var ErrBadPort = errors.New("motor hub port out of range")

// device is the subset of *i2c.Device used by the hub.
type device interface {
	ReadReg(reg byte, buf []byte) error
	Write(buf []byte) error
	Close() error
}

type Hub struct {
	lock sync.Mutex
	dev  device
	log  *zap.SugaredLogger

	encoders [NumPorts]encoderTracker
	enabled  bool
}

func Open(bus string, addr int, log *zap.SugaredLogger) (*Hub, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: bus}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open motor hub at %s:%#x", bus, addr)
	}
	return newHub(dev, log), nil
}

func newHub(dev device, log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		dev: dev,
		log: log,
	}
}

// Motor returns a handle for the motor on the given 1-based port.
func (h *Hub) Motor(port int) (*Motor, error) {
	if port < 1 || port > NumPorts {
		return nil, errors.Wrapf(ErrBadPort, "port %d", port)
	}
	return &Motor{hub: h, port: port}, nil
}

// SetWatchdog makes the hub stop all motors if it hears nothing for timeout.
// A zero timeout disables the watchdog.
func (h *Hub) SetWatchdog(timeout time.Duration) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	ctrl := RegCtrlEnable
	if timeout > 0 {
		ms := timeout.Milliseconds()
		if ms > 0xffff {
			ms = 0xffff
		}
		if err := h.writeReg(RegWatchdogTimeout, uint16(ms)); err != nil {
			return err
		}
		ctrl |= RegCtrlWatchdogEnable
	}
	if err := h.writeReg(RegCtrl, ctrl); err != nil {
		return err
	}
	h.enabled = true
	return nil
}

// Reset stops every motor and clears the hub's fault state.
func (h *Hub) Reset() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.enabled = false
	return h.writeReg(RegCtrl, RegCtrlReset)
}

func (h *Hub) BattVolts() (float64, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	raw, err := h.readReg(RegBattV)
	if err != nil {
		return 0, err
	}
	return float64(raw) * BattVLSB, nil
}

func (h *Hub) Status() (StatusFlag, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	raw, err := h.readReg(RegStatus)
	if err != nil {
		return 0, err
	}
	return StatusFlag(raw), nil
}

func (h *Hub) Close() error {
	_ = h.Reset()
	return h.dev.Close()
}

func (h *Hub) writePortReg(port int, offset Register, value uint16) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.enabled {
		if err := h.writeReg(RegCtrl, RegCtrlEnable); err != nil {
			return err
		}
		h.enabled = true
	}
	return h.writeReg(portReg(port, offset), value)
}

func (h *Hub) readEncoder(port int) (int64, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	raw, err := h.readReg(portReg(port, portRegEncoder))
	if err != nil {
		return 0, err
	}
	return h.encoders[port-1].update(int16(raw)), nil
}

func (h *Hub) zeroEncoder(port int) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.encoders[port-1].zero()
}

func portReg(port int, offset Register) Register {
	return portBase + Register((port-1)*portRegs) + offset
}

func (h *Hub) writeReg(reg Register, value uint16) error {
	return h.writeWithRetries([]byte{byte(reg), byte(value >> 8), byte(value)})
}

func (h *Hub) readReg(reg Register) (uint16, error) {
	var buf [2]byte
	if err := h.dev.ReadReg(byte(reg), buf[:]); err != nil {
		return 0, errors.Wrapf(err, "failed to read motor hub register %d", reg)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

const maxWriteTries = 5

func (h *Hub) writeWithRetries(data []byte) error {
	var err error
	for tries := 0; tries < maxWriteTries; tries++ {
		err = h.dev.Write(data)
		if err == nil {
			if tries > 0 {
				h.log.Infow("Wrote to motor hub after retries", "tries", tries+1)
			}
			return nil
		}
		h.log.Warnw("Failed to write to motor hub", "register", data[0], "err", err)
		time.Sleep(time.Millisecond)
	}
	return errors.Wrapf(err, "failed to write motor hub register %d", data[0])
}

// Motor is one smart motor attached to the hub.
type Motor struct {
	hub  *Hub
	port int
}

func (m *Motor) Port() int {
	return m.port
}

// Move sets open-loop power in [-127, 127]; larger values are clamped.
func (m *Motor) Move(power int) error {
	return m.hub.writePortReg(m.port, portRegPower, uint16(int16(clampPower(power))))
}

// MoveVelocity asks the motor's own controller to hold rpm.
func (m *Motor) MoveVelocity(rpm int) error {
	if rpm > 0x7fff {
		rpm = 0x7fff
	} else if rpm < -0x7fff {
		rpm = -0x7fff
	}
	return m.hub.writePortReg(m.port, portRegVelocity, uint16(int16(rpm)))
}

// Position returns the encoder count accumulated since the first read or the
// last ZeroPosition.
func (m *Motor) Position() (float64, error) {
	p, err := m.hub.readEncoder(m.port)
	if err != nil {
		return 0, errors.Wrapf(err, "port %d encoder", m.port)
	}
	return float64(p), nil
}

func (m *Motor) ZeroPosition() {
	m.hub.zeroEncoder(m.port)
}

func (m *Motor) SetBrakeMode(mode BrakeMode) error {
	return m.hub.writePortReg(m.port, portRegBrake, uint16(mode))
}

func (m *Motor) String() string {
	return fmt.Sprintf("motor(port=%d)", m.port)
}

func clampPower(p int) int {
	if p > MaxPower {
		return MaxPower
	}
	if p < -MaxPower {
		return -MaxPower
	}
	return p
}
