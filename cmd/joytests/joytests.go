package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/joystick"
)

var watched = []struct {
	name   string
	button uint8
}{
	{"up", joystick.ButtonDPadUp},
	{"down", joystick.ButtonDPadDown},
	{"left", joystick.ButtonDPadLeft},
	{"right", joystick.ButtonDPadRight},
	{"L1", joystick.ButtonL1},
	{"L2", joystick.ButtonL2},
	{"R1", joystick.ButtonR1},
	{"R2", joystick.ButtonR2},
	{"cross", joystick.ButtonCross},
	{"square", joystick.ButtonSquare},
}

// Prints joystick events along with the sticks and presses as operator
// control sees them.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	dev := joystick.DeviceFromEnv()
	j, err := joystick.WaitForJoystick(ctx, dev, clock.New(), time.Second, func(err error) {
		fmt.Printf("Waiting for joystick: %v.\n", err)
	})
	if err != nil {
		return
	}
	fmt.Println("Opened joystick", dev)

	events := make(chan *joystick.Event)
	go func() {
		err := j.LoopReading(ctx, events, nil)
		fmt.Printf("Joystick failed: %v\n", err)
	}()

	state := joystick.NewState()
	for e := range events {
		state.Apply(e)
		fmt.Printf("%-16s fwd=%+.2f turn=%+.2f", e, -state.AxisFraction(joystick.AxisLStickY), state.AxisFraction(joystick.AxisRStickX))
		if e.Initial {
			fmt.Print(" (initial)")
		}
		for _, b := range watched {
			if state.NewPress(b.button) {
				fmt.Printf(" press:%s", b.name)
			}
		}
		fmt.Println()
	}
}
