package bno08x

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"periph.io/x/periph/conn/gpio"
)

// The BNO08x runs in UART-RVC mode: it streams 19-byte packets at 100Hz,
// each starting with 0xaaaa and ending with a checksum.

const DefaultDevice = "/dev/ttyAMA0"

const ReportFrequency = 100
const ReportInterval = time.Second / ReportFrequency

const packetLen = 19

var (
	ErrNoReport   = errors.New("no IMU report received yet")
	ErrStale      = errors.New("IMU report is stale")
	ErrBadPacket  = errors.New("bad IMU packet")
	ErrLostSync   = errors.New("lost sync with IMU packet stream")
	packetHeader  = []byte{0xaa, 0xaa}
	resetPulseLen = 10 * time.Millisecond
)

type IMUReport struct {
	Time   time.Time
	Index  uint8
	Yaw    int16
	Pitch  int16
	Roll   int16
	XAccel int16
	YAccel int16
	ZAccel int16
}

func (i IMUReport) String() string {
	return fmt.Sprintf("[%02x] Y:%7.2f P:%7.2f R:%7.2f X:%7.2f Y:%7.2f Z:%7.2f",
		i.Index, float64(i.Yaw)/100.0, float64(i.Pitch)/100.0, float64(i.Roll)/100.0,
		float64(i.XAccel)/100.0, float64(i.YAccel)/100.0, float64(i.ZAccel)/100.0)
}

// YawDegrees is the yaw as reported by the chip: anticlockwise positive, in
// [-180, 180].
func (i IMUReport) YawDegrees() float64 {
	return (float64(i.Yaw)) / 100.0
}

type Options struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// StaleAfter is how old the last report may be before ReadHeading
	// reports a fault.
	StaleAfter time.Duration `yaml:"staleAfter"`
	// Anticlockwise keeps the chip's native sense instead of converting to
	// clockwise-positive.
	Anticlockwise bool `yaml:"anticlockwise"`
	// ResetPin is the GPIO wired to the chip's active-low reset line.
	ResetPin string `yaml:"resetPin"`
}

func DefaultOptions() Options {
	return Options{
		Device:     DefaultDevice,
		Baud:       115200,
		StaleAfter: 10 * ReportInterval,
	}
}

type BNO08X struct {
	opts     Options
	resetPin gpio.PinOut
	clock    clock.Clock
	log      *zap.SugaredLogger

	lock       sync.Mutex
	cond       *sync.Cond
	lastReport IMUReport
	resync     bool
}

// New creates the driver; reports only start flowing once LoopReadingReports
// is running.  resetPin may be nil.
func New(opts Options, resetPin gpio.PinOut, clk clock.Clock, log *zap.SugaredLogger) *BNO08X {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	b := &BNO08X{
		opts:     opts,
		resetPin: resetPin,
		clock:    clk,
		log:      log,
	}
	b.cond = sync.NewCond(&b.lock)
	return b
}

func (b *BNO08X) CurrentReport() IMUReport {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastReport
}

// ReadHeading returns the latest yaw as a heading in [0, 360), clockwise
// positive unless configured otherwise.  It fails if no fresh report is
// available.
func (b *BNO08X) ReadHeading() (float64, error) {
	r := b.CurrentReport()
	if r.Time.IsZero() {
		return 0, ErrNoReport
	}
	if age := b.clock.Since(r.Time); b.opts.StaleAfter > 0 && age > b.opts.StaleAfter {
		return 0, errors.Wrapf(ErrStale, "last report %v ago", age)
	}
	yaw := r.YawDegrees()
	if !b.opts.Anticlockwise {
		yaw = -yaw
	}
	if yaw < 0 {
		yaw += 360
	}
	if yaw >= 360 {
		yaw -= 360
	}
	return yaw, nil
}

// Reset pulses the chip's reset line (if wired) and waits for the first report
// after it comes back up.  The chip re-runs its calibration on boot.
func (b *BNO08X) Reset() error {
	return b.ResetContext(context.Background())
}

func (b *BNO08X) ResetContext(ctx context.Context) error {
	b.log.Info("Resetting IMU")
	b.lock.Lock()
	b.lastReport = IMUReport{}
	b.resync = true
	b.lock.Unlock()

	if b.resetPin != nil {
		if err := b.resetPin.Out(gpio.Low); err != nil {
			return errors.Wrap(err, "failed to assert IMU reset")
		}
		b.clock.Sleep(resetPulseLen)
		if err := b.resetPin.Out(gpio.High); err != nil {
			return errors.Wrap(err, "failed to release IMU reset")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := b.WaitForReportAfter(ctx, time.Time{})
	return errors.Wrap(err, "IMU did not report after reset")
}

// WaitForReportAfter blocks until a report newer than t arrives.
func (b *BNO08X) WaitForReportAfter(ctx context.Context, t time.Time) (IMUReport, error) {
	stop := context.AfterFunc(ctx, func() {
		b.lock.Lock()
		defer b.lock.Unlock()
		b.cond.Broadcast()
	})
	defer stop()

	b.lock.Lock()
	defer b.lock.Unlock()
	for b.lastReport.Time.IsZero() || !b.lastReport.Time.After(t) {
		if err := ctx.Err(); err != nil {
			return IMUReport{}, err
		}
		b.cond.Wait()
	}
	return b.lastReport, nil
}

func (b *BNO08X) LoopReadingReports(ctx context.Context) {
	defer b.broadcast()
	for ctx.Err() == nil {
		err := b.openAndLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		b.log.Warnw("IMU loop stopped; will retry", "err", err)
		b.clock.Sleep(100 * time.Millisecond)
		b.broadcast()
	}
}

func (b *BNO08X) openAndLoop(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: b.opts.Baud,
	}
	s, err := serial.Open(b.opts.Device, mode)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", b.opts.Device)
	}
	defer s.Close()
	if err := s.SetReadTimeout(time.Second); err != nil {
		return errors.Wrap(err, "failed to set serial read timeout")
	}
	return b.readLoop(ctx, s)
}

// readLoop parses packets from r until ctx is done or r fails.
func (b *BNO08X) readLoop(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	buf := make([]byte, packetLen)
	inSync := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !inSync || b.takeResync() {
			b.log.Debug("IMU resync...")
			if err := syncToHeader(br); err != nil {
				return err
			}
			inSync = true
			b.log.Debug("IMU in sync with packet stream")
		}

		if _, err := io.ReadFull(br, buf); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		report, err := decodePacket(buf)
		if err != nil {
			b.log.Warnw("Bad IMU packet", "err", err)
			inSync = false
			continue
		}
		report.Time = b.clock.Now()
		b.setReport(report)
	}
}

func syncToHeader(br *bufio.Reader) error {
	for {
		buf, err := br.Peek(2)
		if err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		if bytes.Equal(buf, packetHeader) {
			return nil
		}
		if _, err := br.Discard(1); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
	}
}

// decodePacket parses one packet.  The report's Time is left unset.
func decodePacket(buf []byte) (IMUReport, error) {
	if len(buf) != packetLen {
		return IMUReport{}, errors.Wrapf(ErrBadPacket, "length %d", len(buf))
	}
	if !bytes.Equal(buf[:2], packetHeader) {
		return IMUReport{}, ErrLostSync
	}
	var checksum uint8
	for _, b := range buf[2 : packetLen-1] {
		checksum += b
	}
	if buf[packetLen-1] != checksum {
		return IMUReport{}, errors.Wrapf(ErrBadPacket, "checksum %x != %x", buf[packetLen-1], checksum)
	}
	var report IMUReport
	report.Index = buf[2]
	report.Yaw = int16(binary.LittleEndian.Uint16(buf[3:5]))
	report.Pitch = int16(binary.LittleEndian.Uint16(buf[5:7]))
	report.Roll = int16(binary.LittleEndian.Uint16(buf[7:9]))
	report.XAccel = int16(binary.LittleEndian.Uint16(buf[9:11]))
	report.YAccel = int16(binary.LittleEndian.Uint16(buf[11:13]))
	report.ZAccel = int16(binary.LittleEndian.Uint16(buf[13:15]))
	return report, nil
}

func (b *BNO08X) takeResync() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	r := b.resync
	b.resync = false
	return r
}

func (b *BNO08X) setReport(report IMUReport) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.lastReport = report
	b.cond.Broadcast()
}

func (b *BNO08X) broadcast() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.cond.Broadcast()
}
