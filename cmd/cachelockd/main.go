// go-cachelock
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-cachelock.
//
// go-cachelock is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-cachelock is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-cachelock; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // the device image ships without a zoneinfo database

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-cachelock/admin"
	"github.com/ZaparooProject/go-cachelock/clock"
	"github.com/ZaparooProject/go-cachelock/config"
	"github.com/ZaparooProject/go-cachelock/controller"
	"github.com/ZaparooProject/go-cachelock/display"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/nfc"
	"github.com/ZaparooProject/go-cachelock/power"
	"github.com/ZaparooProject/go-cachelock/retained"
	"github.com/ZaparooProject/go-cachelock/store"
)

type flags struct {
	configPath *string
	debug      *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", config.DefaultPath, "Path to the daemon configuration"),
		debug:      flag.Bool("debug", false, "Enable debug logging"),
	}
	flag.Parse()
	return f
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == config.DefaultPath {
		return config.Default(), nil
	}
	return cfg, err
}

func lookupPin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %s not found", name)
	}
	return pin, nil
}

func clockFactory(cfg *config.Config, link clock.Link, logger *logging.Logger) controller.ClockFactory {
	return func(rec clock.SyncRecorder, loc *time.Location) *clock.Source {
		return clock.NewSource(clock.SystemWall{},
			clock.WithLink(link),
			clock.WithResolver(&clock.DNSResolver{
				ConfigPath: clock.DefaultResolvConf,
				Servers:    cfg.Time.DNS,
			}),
			clock.WithQuerier(&clock.NTPQuerier{}),
			clock.WithTimeAuthority(cfg.Time.Host, cfg.Time.Servers...),
			clock.WithRecorder(rec),
			clock.WithLocation(loc),
			clock.WithLogger(logger))
	}
}

func suspenderOptions(cfg *config.Config, logger *logging.Logger) []power.SuspenderOption {
	opts := []power.SuspenderOption{power.WithSuspenderLogger(logger)}
	if cfg.Power.SystemSuspend {
		opts = append(opts, power.WithSystemSuspend(cfg.Power.WakeAlarm, cfg.Power.PowerState))
	}
	return opts
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(cfg.Hardware.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open i2c bus: %w", err)
	}
	defer func() { _ = bus.Close() }()

	rst, err := lookupPin(cfg.Hardware.ResetPin)
	if err != nil {
		return err
	}
	irq, err := lookupPin(cfg.Hardware.IRQPin)
	if err != nil {
		return err
	}

	readerOpts := []nfc.Option{nfc.WithLogger(logger)}
	if rst != nil {
		readerOpts = append(readerOpts, nfc.WithResetPin(rst))
	}
	if irq != nil {
		readerOpts = append(readerOpts, nfc.WithIRQPin(irq))
	}
	reader := nfc.New(nfc.NewI2CConn(bus, cfg.Hardware.NFCAddress), readerOpts...)

	oled, err := display.OpenI2C(bus, display.WithContrast(cfg.Hardware.Contrast), display.WithLogger(logger))
	if err != nil {
		return err
	}

	settings, err := store.Open(cfg.Paths.Settings, logger)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}
	defer func() { _ = settings.Close() }()

	var link clock.Link = clock.NopLink{}
	var radio power.Radio
	if cfg.Time.Interface != "" {
		nl := &clock.NetlinkLink{Interface: cfg.Time.Interface}
		link, radio = nl, nl
	}

	ctrlCfg := controller.Config{
		NFC:       reader,
		Display:   oled,
		Radio:     radio,
		Suspender: power.NewGPIOSuspender(irq, suspenderOptions(cfg, logger)...),
		Store:     settings,
		Retained:  retained.NewFileStore(cfg.Paths.Retained),
		NewClock:  clockFactory(cfg, link, logger),
		Logger:    logger,
	}

	if cfg.Console.Port != "" {
		lines, err := admin.OpenSerial(cfg.Console.Port, cfg.Console.Baud, cfg.Console.ReadTimeout)
		if err != nil {
			logger.Warn("operator console unavailable", "port", cfg.Console.Port, "error", err)
		} else {
			defer func() { _ = lines.Close() }()
			ctrlCfg.Console = lines
		}
	}

	ctrl, err := controller.New(ctrlCfg)
	if err != nil {
		return err
	}
	return ctrl.Run(ctx)
}

func main() {
	f := parseFlags()

	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.Logger()
	logging.SetDefault(logger)
	if *f.debug {
		logging.SetDebugEnabled(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("cachelockd starting", "config", *f.configPath)
	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("cachelockd stopped", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("cachelockd stopped")
}
