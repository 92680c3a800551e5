package sound

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

const DefaultDir = "/sounds"

// Player plays WAV files from a directory on a background goroutine.  A new
// sound interrupts the current one.  If the speaker can't be opened sounds are
// logged and dropped.
type Player struct {
	dir  string
	log  *zap.SugaredLogger
	reqs chan string

	closeOnce sync.Once
	done      chan struct{}
}

func NewPlayer(dir string, log *zap.SugaredLogger) *Player {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &Player{
		dir:  dir,
		log:  log,
		reqs: make(chan string, 4),
		done: make(chan struct{}),
	}
	go p.loop()
	return p
}

// Play queues the named sound ("start" plays <dir>/start.wav).  It never
// blocks; if the queue is full the sound is dropped.
func (p *Player) Play(name string) {
	select {
	case p.reqs <- name:
	default:
		p.log.Debugw("Sound queue full, dropping", "sound", name)
	}
}

func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.reqs)
	})
	<-p.done
}

func (p *Player) path(name string) string {
	if filepath.Ext(name) == "" {
		name += ".wav"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.dir, name)
}

func (p *Player) drain(reason string) {
	for s := range p.reqs {
		p.log.Debugw("Unable to play sound", "sound", s, "reason", reason)
	}
}

func (p *Player) loop() {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("Sound player panicked", "panic", r)
			p.drain("panic")
		}
	}()

	if p.dir == "" {
		p.drain("no sound directory")
		return
	}
	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		p.log.Warnw("Failed to open speaker", "err", err)
		p.drain("no speaker")
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	stopCurrent := func() {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			_ = s.Close()
			s = nil
		}
	}
	defer stopCurrent()

	for name := range p.reqs {
		stopCurrent()

		f, err := os.Open(p.path(name))
		if err != nil {
			p.log.Warnw("Failed to open sound", "sound", name, "err", err)
			continue
		}
		var format beep.Format
		s, format, err = wav.Decode(f)
		if err != nil {
			_ = f.Close()
			p.log.Warnw("Failed to decode sound", "sound", name, "err", err)
			continue
		}
		if format.SampleRate != sampleRate {
			p.log.Warnw("Sound has the wrong sample rate, it will play at the wrong speed",
				"sound", name, "rate", format.SampleRate)
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
}
