// Package tunable holds integer settings adjusted from the controller while
// the robot runs.
package tunable

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Tunable is an integer adjustable at run time from the controller, kept
// within [Min, Max].
type Tunable struct {
	Name  string
	Value int64
	Min   int64
	Max   int64

	log *zap.SugaredLogger
}

// Add moves the value by delta, stopping at the bounds, and returns the new
// value.
func (t *Tunable) Add(delta int) int {
	for {
		old := atomic.LoadInt64(&t.Value)
		newV := t.clamp(old + int64(delta))
		if atomic.CompareAndSwapInt64(&t.Value, old, newV) {
			if newV != old {
				t.log.Infow("Tunable changed", "name", t.Name, "value", newV)
			}
			return int(newV)
		}
	}
}

func (t *Tunable) Set(v int) {
	atomic.StoreInt64(&t.Value, t.clamp(int64(v)))
}

func (t *Tunable) Get() int {
	return int(atomic.LoadInt64(&t.Value))
}

func (t *Tunable) clamp(v int64) int64 {
	if v < t.Min {
		return t.Min
	}
	if v > t.Max {
		return t.Max
	}
	return v
}

// Tunables is a set of Tunables sharing a logger.
type Tunables struct {
	All []*Tunable
	Log *zap.SugaredLogger
}

func (t *Tunables) Create(name string, value, min, max int) *Tunable {
	log := t.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if min > max {
		min, max = max, min
	}
	newTunable := &Tunable{
		Name: name,
		Min:  int64(min),
		Max:  int64(max),
		log:  log,
	}
	newTunable.Set(value)
	t.All = append(t.All, newTunable)
	return newTunable
}
