package hardware

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/bno08x"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/heading"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/pneumatics"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/screen"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/sound"
)

var ErrNotStarted = errors.New("hardware not started")

// Hardware is the real robot: smart motors on the I2C motor hub, the BNO08x
// IMU on the serial port, pistons on GPIO and the status screen.
type Hardware struct {
	cfg    Config
	screen *screen.Screen
	log    *zap.SugaredLogger
	sounds *sound.Player

	hub *motorhub.Hub
	imu *bno08x.BNO08X

	lock    sync.Mutex
	motors  map[int]*motorhub.Motor
	pistons map[string]*pneumatics.Piston
	battV   float64
}

var _ Interface = (*Hardware)(nil)

func New(cfg Config, scr *screen.Screen, log *zap.SugaredLogger) *Hardware {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if scr == nil {
		scr = screen.New(log.Named("screen"))
	}
	return &Hardware{
		cfg:     cfg,
		screen:  scr,
		log:     log,
		sounds:  sound.NewPlayer(cfg.SoundDir, log.Named("sound")),
		motors:  map[int]*motorhub.Motor{},
		pistons: map[string]*pneumatics.Piston{},
	}
}

func (h *Hardware) Start(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialise periph host drivers")
	}

	if h.cfg.FlashHub {
		if err := h.flashHub(ctx); err != nil {
			return err
		}
	}
	hub, err := motorhub.Open(h.cfg.I2CBus, h.cfg.HubAddr, h.log.Named("hub"))
	if err != nil {
		return err
	}
	if err := hub.SetWatchdog(h.cfg.Watchdog); err != nil {
		_ = hub.Close()
		return errors.Wrap(err, "failed to configure motor hub")
	}

	var resetPin gpio.PinOut
	if h.cfg.IMU.ResetPin != "" {
		p := gpioreg.ByName(h.cfg.IMU.ResetPin)
		if p == nil {
			_ = hub.Close()
			return errors.Errorf("no GPIO pin named %q for IMU reset", h.cfg.IMU.ResetPin)
		}
		resetPin = p
	}
	imu := bno08x.New(h.cfg.IMU, resetPin, nil, h.log.Named("imu"))

	pistons := map[string]*pneumatics.Piston{}
	for name, pinName := range h.cfg.Pistons {
		p, err := pneumatics.ByName(name, pinName, h.log.Named("pneumatics"))
		if err != nil {
			_ = hub.Close()
			return err
		}
		pistons[name] = p
	}

	h.lock.Lock()
	h.hub = hub
	h.imu = imu
	h.pistons = pistons
	h.lock.Unlock()

	go imu.LoopReadingReports(ctx)
	go h.screen.LoopUpdating(ctx, h.cfg.Screen)
	go h.loopPollingHub(ctx)
	h.log.Infow("Hardware started", "pistons", sortedKeys(pistons))
	return nil
}

func (h *Hardware) flashHub(ctx context.Context) error {
	out := &zapio.Writer{Log: h.log.Desugar().Named("flash"), Level: zap.DebugLevel}
	defer out.Close()
	return motorhub.Flash(ctx, h.cfg.FlashTool, h.cfg.Firmware, out, h.log.Named("flash"))
}

func (h *Hardware) Motor(port int) (Motor, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.hub == nil {
		return nil, ErrNotStarted
	}
	if m, ok := h.motors[port]; ok {
		return m, nil
	}
	m, err := h.hub.Motor(port)
	if err != nil {
		return nil, err
	}
	h.motors[port] = m
	return m, nil
}

func (h *Hardware) Piston(name string) (Piston, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	p, ok := h.pistons[name]
	if !ok {
		return nil, errors.Errorf("no piston named %q", name)
	}
	return p, nil
}

func (h *Hardware) RotationSensor() heading.RotationSensor {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.imu == nil {
		return notStartedSensor{}
	}
	return h.imu
}

func (h *Hardware) BatteryVolts() float64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.battV
}

func (h *Hardware) setBatteryVolts(v float64) {
	h.lock.Lock()
	h.battV = v
	h.lock.Unlock()
	h.screen.SetBatteryVolts(v)
}

func (h *Hardware) PlaySound(name string) {
	h.sounds.Play(name)
}

func (h *Hardware) StopAll() error {
	h.lock.Lock()
	motors := make([]*motorhub.Motor, 0, len(h.motors))
	for _, m := range h.motors {
		motors = append(motors, m)
	}
	h.lock.Unlock()

	var err error
	for _, m := range motors {
		if e := m.Move(0); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "failed to stop %v", m))
		}
	}
	return err
}

func (h *Hardware) Shutdown() {
	if err := h.StopAll(); err != nil {
		h.log.Errorw("Failed to stop motors on shutdown", "err", err)
	}
	h.sounds.Close()

	h.lock.Lock()
	hub := h.hub
	h.hub = nil
	h.lock.Unlock()
	if hub != nil {
		if err := hub.Close(); err != nil {
			h.log.Errorw("Failed to close motor hub", "err", err)
		}
	}
}

type notStartedSensor struct{}

func (notStartedSensor) ReadHeading() (float64, error) { return 0, ErrNotStarted }
func (notStartedSensor) Reset() error                  { return ErrNotStarted }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
