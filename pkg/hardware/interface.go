package hardware

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/bno08x"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/heading"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
)

type Interface interface {
	// Start brings up the hardware and its background loops, which run until
	// ctx is done.
	Start(ctx context.Context) error

	Motor(port int) (Motor, error)
	Piston(name string) (Piston, error)
	RotationSensor() heading.RotationSensor

	// BatteryVolts returns the last battery reading, or 0 if there hasn't
	// been one.
	BatteryVolts() float64

	PlaySound(name string)

	// StopAll sets every motor that has been used to zero power.
	StopAll() error
	Shutdown()
}

type Motor interface {
	Move(power int) error
	MoveVelocity(rpm int) error
	Position() (float64, error)
	SetBrakeMode(mode motorhub.BrakeMode) error
}

type Piston interface {
	Set(extended bool) error
}

type Config struct {
	I2CBus   string        `yaml:"i2cBus"`
	HubAddr  int           `yaml:"hubAddr"`
	Watchdog time.Duration `yaml:"watchdog"`
	// FlashHub loads the hub firmware on start.
	FlashHub  bool   `yaml:"flashHub"`
	FlashTool string `yaml:"flashTool"`
	Firmware  string `yaml:"firmware"`

	IMU bno08x.Options `yaml:"imu"`

	// Pistons maps piston names to GPIO pin names.
	Pistons map[string]string `yaml:"pistons"`

	Screen      string        `yaml:"screen"`
	SoundDir    string        `yaml:"soundDir"`
	BatteryPoll time.Duration `yaml:"batteryPoll"`

	Sim SimConfig `yaml:"sim"`
}

func DefaultConfig() Config {
	imu := bno08x.DefaultOptions()
	return Config{
		I2CBus:    "/dev/i2c-1",
		HubAddr:   motorhub.DefaultAddr,
		Watchdog:  500 * time.Millisecond,
		FlashTool: motorhub.DefaultFlashTool,
		Firmware:  motorhub.DefaultFirmware,
		IMU:       imu,
		Pistons: map[string]string{
			"A": "GPIO17",
			"B": "GPIO27",
		},
		Screen:      "/dev/fb1",
		SoundDir:    "/sounds",
		BatteryPoll: 10 * time.Second,
		Sim:         DefaultSimConfig(),
	}
}

func (c Config) Validate() error {
	if c.HubAddr <= 0 || c.HubAddr > 0x7f {
		return errors.Errorf("hub address %#x is not a 7-bit I2C address", c.HubAddr)
	}
	if c.Watchdog < 0 {
		return errors.New("hub watchdog must not be negative")
	}
	if c.FlashHub && c.Firmware == "" {
		return errors.New("flashHub needs a firmware path")
	}
	if c.IMU.Baud <= 0 {
		return errors.Errorf("bad IMU baud rate %d", c.IMU.Baud)
	}
	if c.BatteryPoll <= 0 {
		return errors.New("batteryPoll must be positive")
	}
	return nil
}
