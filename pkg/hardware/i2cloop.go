package hardware

import (
	"context"
	"time"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
)

const maxHubFailures = 5

// loopPollingHub keeps the hub's watchdog fed, watches for faults and reads
// the battery voltage.  If the hub stops responding it is reset (and
// reflashed if configured).
func (h *Hardware) loopPollingHub(ctx context.Context) {
	interval := h.cfg.Watchdog / 4
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info("Motor hub loop started")
	var lastBattRead time.Time
	var lastStatus motorhub.StatusFlag
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		h.lock.Lock()
		hub := h.hub
		h.lock.Unlock()
		if hub == nil {
			return
		}

		status, err := hub.Status()
		if err != nil {
			failures++
			h.log.Warnw("Failed to read motor hub status", "failures", failures, "err", err)
			if failures >= maxHubFailures {
				h.recoverHub(ctx, hub)
				failures = 0
			}
			continue
		}
		failures = 0
		if status != lastStatus {
			if status&motorhub.RegStatusFault != 0 {
				h.log.Warn("Motor hub reports a fault")
			}
			if status&motorhub.RegStatusWatchdogExpired != 0 {
				h.log.Warn("Motor hub watchdog expired; motors were stopped")
			}
			lastStatus = status
		}

		if time.Since(lastBattRead) > h.cfg.BatteryPoll {
			v, err := hub.BattVolts()
			if err != nil {
				h.log.Warnw("Failed to read battery voltage", "err", err)
				continue
			}
			lastBattRead = time.Now()
			h.setBatteryVolts(v)
			h.log.Debugw("Battery", "volts", v)
		}
	}
}

func (h *Hardware) recoverHub(ctx context.Context, hub *motorhub.Hub) {
	h.log.Error("===== !!! WARNING !!! MOTOR HUB FAILURE; TRYING TO RECOVER =====")
	_ = hub.Reset()
	if h.cfg.FlashHub {
		if err := h.flashHub(ctx); err != nil {
			h.log.Errorw("Failed to reflash motor hub", "err", err)
			return
		}
	}
	if err := hub.SetWatchdog(h.cfg.Watchdog); err != nil {
		h.log.Errorw("Failed to reconfigure motor hub", "err", err)
	}
}
