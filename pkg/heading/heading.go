// Package heading tracks the robot's logical heading on top of a raw rotation
// sensor.  The logical heading is always the raw reading minus the offset
// captured by the last Zero().
package heading

import (
	"math"

	"go.uber.org/zap"
)

// RotationSensor is a physical sensor reporting an absolute heading in
// degrees, conventionally in [0, 360).  A fault is reported as a non-nil error.
type RotationSensor interface {
	ReadHeading() (float64, error)
	Reset() error
}

type Source struct {
	sensor RotationSensor
	log    *zap.SugaredLogger

	offset float64
}

func New(sensor RotationSensor, log *zap.SugaredLogger) *Source {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Source{
		sensor: sensor,
		log:    log,
	}
}

// RawHeading returns the sensor's reading, or 0 if the sensor reports a fault.
// A faulty sensor must not stall the control loop, so we assume the robot is
// unrotated instead.
func (s *Source) RawHeading() float64 {
	h, err := s.sensor.ReadHeading()
	if err != nil {
		s.log.Debugw("Rotation sensor fault, assuming 0", "error", err)
		return 0
	}
	if math.IsNaN(h) || math.IsInf(h, 0) {
		s.log.Debugw("Rotation sensor returned invalid reading, assuming 0", "reading", h)
		return 0
	}
	return h
}

// Zero makes the current orientation the logical zero heading.
func (s *Source) Zero() {
	s.offset = s.RawHeading()
	s.log.Debugw("Heading zeroed", "offset", s.offset)
}

// Heading returns the logical heading in degrees.  The value is not
// normalised; it lies in (-360, 360) for a sensor reporting [0, 360).
func (s *Source) Heading() float64 {
	return s.RawHeading() - s.offset
}

func (s *Source) Offset() float64 {
	return s.offset
}

// Reset re-initialises the physical sensor.  The logical offset is untouched.
func (s *Source) Reset() error {
	s.log.Info("Resetting rotation sensor")
	return s.sensor.Reset()
}
