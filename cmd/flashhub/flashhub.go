package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tigerbot-team/pushbot/go-controller/pkg/config"
	"github.com/tigerbot-team/pushbot/go-controller/pkg/motorhub"
)

func main() {
	app := &cli.App{
		Name:  "flashhub",
		Usage: "load the motor hub firmware and check the hub responds",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath, Usage: "config file"},
			&cli.StringFlag{Name: "firmware", Usage: "firmware image; defaults to the configured one"},
			&cli.BoolFlag{Name: "no-flash", Usage: "only check the hub"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	fmt.Println("Motor hub flash program")
	log, err := config.NewLogger(false, c.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	cfg, err := config.Load(c.String("config"), log)
	if err != nil {
		return err
	}
	hwCfg := cfg.Hardware
	if fw := c.String("firmware"); fw != "" {
		hwCfg.Firmware = fw
	}

	if !c.Bool("no-flash") {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := motorhub.Flash(ctx, hwCfg.FlashTool, hwCfg.Firmware, os.Stdout, log.Named("flash")); err != nil {
			return err
		}
		fmt.Println("Flashed", hwCfg.Firmware)
	}

	hub, err := motorhub.Open(hwCfg.I2CBus, hwCfg.HubAddr, log.Named("hub"))
	if err != nil {
		return err
	}
	defer hub.Close()
	if err := hub.SetWatchdog(time.Second); err != nil {
		return err
	}
	fmt.Println("Watchdog enabled.")

	for i := 0; i < 5; i++ {
		battV, _ := hub.BattVolts()
		status, _ := hub.Status()
		fmt.Printf("%.2fV Status=%x\n", battV, status)
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}
