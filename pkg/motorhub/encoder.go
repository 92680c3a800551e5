package motorhub

// encoderTracker turns the hub's wrapping 16-bit encoder registers into an
// unbounded count.  Reads must be frequent enough that a motor never turns
// more than half the register range between them.
type encoderTracker struct {
	doneFirstPoll bool
	lastRaw       int16

	accumulator int64
}

func (e *encoderTracker) update(raw int16) int64 {
	if e.doneFirstPoll {
		// int16 subtraction wraps, giving the short way round.
		delta := raw - e.lastRaw
		e.accumulator += int64(delta)
	}
	e.lastRaw = raw
	e.doneFirstPoll = true
	return e.accumulator
}

func (e *encoderTracker) zero() {
	e.accumulator = 0
}
