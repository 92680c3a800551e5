// Package joystick reads a gamepad through the Linux joystick API
// (/dev/input/jsN).
package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Gamepad mapping, as reported by the hid-sony driver:
//
//	Buttons: Cross 0, Circle 1, Triangle 2, Square 3, L1 4, R1 5, L2 6,
//	R2 7, Share 8, Options 9, PS 10, L stick 11, R stick 12.
//
//	Axes (-32767 is up or left):
//	  L stick  x 0, y 1
//	  L2       2 (unpressed = -32767)
//	  R stick  x 3, y 4
//	  R2       5 (unpressed = -32767)
//	  D-pad    x 6, y 7

const DefaultDevice = "/dev/input/js0"

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2

	// eventTypeInit is set on the synthetic events the driver sends on open
	// to report the initial state.
	eventTypeInit = 0x80
)

const (
	ButtonCross    = 0
	ButtonCircle   = 1
	ButtonTriangle = 2
	ButtonSquare   = 3
	ButtonL1       = 4
	ButtonR1       = 5
	ButtonL2       = 6
	ButtonR2       = 7
	ButtonShare    = 8
	ButtonOptions  = 9
	ButtonPS       = 10
	ButtonLStick   = 11
	ButtonRStick   = 12

	AxisLStickX = 0
	AxisLStickY = 1
	AxisL2      = 2
	AxisRStickX = 3
	AxisRStickY = 4
	AxisR2      = 5
	AxisDPadX   = 6
	AxisDPadY   = 7
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

// rawEvent is struct js_event from linux/joystick.h.
type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
	// Initial marks the state events sent when the device is opened.
	Initial bool
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// DeviceFromEnv returns $JOYSTICK_DEVICE, or DefaultDevice if it is unset.
func DeviceFromEnv() string {
	if dev := os.Getenv("JOYSTICK_DEVICE"); dev != "" {
		return dev
	}
	return DefaultDevice
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open joystick %s", device)
	}
	return &Joystick{device: f}, nil
}

// WaitForJoystick retries opening device every retry until it appears or ctx
// is done.  onMissing, if non-nil, is called once with the first error.  A
// nil clk selects the real clock.
func WaitForJoystick(ctx context.Context, device string, clk clock.Clock, retry time.Duration, onMissing func(error)) (*Joystick, error) {
	if clk == nil {
		clk = clock.New()
	}
	first := true
	for {
		j, err := NewJoystick(device)
		if err == nil {
			return j, nil
		}
		if first && onMissing != nil {
			onMissing(err)
		}
		first = false
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(retry):
		}
	}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var raw rawEvent
	if err := binary.Read(j.device, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = raw.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:    j.wallclockEpoch.Add(time.Duration(raw.Time-j.deviceEpoch) * time.Millisecond),
		Value:   raw.Value,
		Type:    EventType(raw.Type &^ eventTypeInit),
		Number:  raw.Number,
		Initial: raw.Type&eventTypeInit != 0,
	}, nil
}

// LoopReading sends events to events until ctx is done or the device fails.
// It closes both events and the joystick on return.
func (j *Joystick) LoopReading(ctx context.Context, events chan<- *Event, log *zap.SugaredLogger) error {
	defer close(events)
	defer j.Close()
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			return errors.Wrap(err, "failed to read from joystick")
		}
		if log != nil {
			log.Debugw("Joy", "event", event, "initial", event.Initial)
		}
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}

func (j *Joystick) Close() error {
	return j.device.Close()
}
