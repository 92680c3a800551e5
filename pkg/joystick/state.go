package joystick

import "sync"

// Virtual buttons synthesised from the D-pad axes, so that the pad can be
// handled like any other button.
const (
	ButtonDPadUp = 100 + iota
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
)

const axisMax = 32767

// State accumulates joystick events into the current stick positions and
// button states.  It also latches new presses so that a control loop polling
// at a fixed rate sees every press exactly once.
type State struct {
	lock    sync.Mutex
	axes    map[uint8]int16
	buttons map[uint8]bool
	presses map[uint8]bool
}

func NewState() *State {
	return &State{
		axes:    map[uint8]int16{},
		buttons: map[uint8]bool{},
		presses: map[uint8]bool{},
	}
}

func (s *State) Apply(e *Event) {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch e.Type {
	case EventTypeAxis:
		s.axes[e.Number] = e.Value
		switch e.Number {
		case AxisDPadX:
			s.setButton(ButtonDPadLeft, e.Value < 0)
			s.setButton(ButtonDPadRight, e.Value > 0)
		case AxisDPadY:
			s.setButton(ButtonDPadUp, e.Value < 0)
			s.setButton(ButtonDPadDown, e.Value > 0)
		}
	case EventTypeButton:
		s.setButton(e.Number, e.Value != 0)
	}
}

func (s *State) setButton(n uint8, down bool) {
	if down && !s.buttons[n] {
		s.presses[n] = true
	}
	s.buttons[n] = down
}

func (s *State) Axis(n uint8) int16 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.axes[n]
}

// AxisFraction returns the axis position scaled to [-1, 1].
func (s *State) AxisFraction(n uint8) float64 {
	v := float64(s.Axis(n)) / axisMax
	if v < -1 {
		return -1
	}
	return v
}

func (s *State) Button(n uint8) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.buttons[n]
}

// NewPress reports whether button n has been pressed since the last call to
// NewPress for that button.
func (s *State) NewPress(n uint8) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	p := s.presses[n]
	delete(s.presses, n)
	return p
}
