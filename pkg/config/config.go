// Package config loads the robot's configuration file.
package config

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/autonomous"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/drivetrain"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/hardware"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motion"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/opmode"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/robot"
)

const (
	DefaultPath = "/cfg/pushbot.yaml"
	InUsePath   = "/cfg/pushbot-in-use.yaml"
)

type Config struct {
	Hardware   hardware.Config   `yaml:"hardware"`
	Ports      robot.Ports       `yaml:"ports"`
	Drive      drivetrain.Config `yaml:"drive"`
	Motion     motion.Config     `yaml:"motion"`
	OpControl  opmode.Config     `yaml:"opcontrol"`
	Autonomous autonomous.Config `yaml:"autonomous"`
}

func Default() Config {
	return Config{
		Hardware:   hardware.DefaultConfig(),
		Ports:      robot.DefaultPorts(),
		Drive:      drivetrain.DefaultConfig(),
		Motion:     motion.DefaultConfig(),
		OpControl:  opmode.DefaultConfig(),
		Autonomous: autonomous.DefaultConfig(),
	}
}

// Load reads the config at path over the defaults.  A missing file is not an
// error; the defaults are used as they are.
func Load(path string, log *zap.SugaredLogger) (Config, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		log.Infow("No config file; using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "bad config in %s", path)
	}
	log.Infow("Loaded config", "path", path)
	return cfg, nil
}

// Parse unmarshals data over cfg and validates the result.  Unknown keys are
// rejected so that typos don't silently fall back to defaults.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c Config) Validate() error {
	if err := c.Hardware.Validate(); err != nil {
		return errors.Wrap(err, "hardware")
	}
	if err := c.Ports.Validate(); err != nil {
		return errors.Wrap(err, "ports")
	}
	if err := c.Drive.Validate(); err != nil {
		return errors.Wrap(err, "drive")
	}
	if err := c.Motion.Validate(); err != nil {
		return errors.Wrap(err, "motion")
	}
	if err := c.OpControl.Validate(); err != nil {
		return errors.Wrap(err, "opcontrol")
	}
	if err := c.Autonomous.Validate(); err != nil {
		return errors.Wrap(err, "autonomous")
	}
	return nil
}

// WriteInUse records the effective config so it can be checked after a run.
func (c Config) WriteInUse(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return errors.Wrap(ioutil.WriteFile(path, data, 0666), "failed to write config in use")
}
