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

// Package controller runs the device: boot reconciliation, then a single
// cooperative loop that polls the console and the reader, advances the
// interaction machine, renders, and decides on sleep. A deep sleep ends the
// loop and the device boots again with only retained state carried over.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/admin"
	"github.com/ZaparooProject/go-cachelock/clock"
	"github.com/ZaparooProject/go-cachelock/interaction"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/power"
	"github.com/ZaparooProject/go-cachelock/retained"
)

// Defaults for Config.
const (
	DefaultTagTimeout      = 50 * time.Millisecond
	DefaultFeedbackHold    = 2 * time.Second
	DefaultLoopInterval    = 20 * time.Millisecond
	DefaultMarqueeStep     = 1
	DefaultMaxReadFailures = 5
)

var ErrMissingCollaborator = errors.New("controller collaborator missing")

// LineSource is the operator console transport.
type LineSource interface {
	Poll() (line string, ok bool, err error)
	WriteLine(text string) error
	Flush() error
}

// ClockFactory builds a fresh time source for a boot. rec records
// successful syncs into retained state.
type ClockFactory func(rec clock.SyncRecorder, loc *time.Location) *clock.Source

// Config wires the controller to the hardware.
type Config struct {
	NFC       cachelock.NFC
	Display   cachelock.Display
	Radio     power.Radio
	Suspender power.Suspender
	Store     cachelock.SettingsStore
	Retained  retained.Store
	NewClock  ClockFactory
	// Console is optional.
	Console LineSource
	// Clock measures activity and timeouts. Defaults to the real clock.
	Clock  clock.Clock
	Logger *logging.Logger

	TagTimeout      time.Duration
	FeedbackHold    time.Duration
	LoopInterval    time.Duration
	MarqueeStep     int
	MaxReadFailures int
}

func (c *Config) validate() error {
	switch {
	case c.NFC == nil:
		return fmt.Errorf("%w: nfc", ErrMissingCollaborator)
	case c.Display == nil:
		return fmt.Errorf("%w: display", ErrMissingCollaborator)
	case c.Suspender == nil:
		return fmt.Errorf("%w: suspender", ErrMissingCollaborator)
	case c.Store == nil:
		return fmt.Errorf("%w: settings store", ErrMissingCollaborator)
	case c.Retained == nil:
		return fmt.Errorf("%w: retained store", ErrMissingCollaborator)
	case c.NewClock == nil:
		return fmt.Errorf("%w: clock factory", ErrMissingCollaborator)
	}
	return nil
}

// DeviceContext is everything one boot owns. It is rebuilt from scratch on
// every boot; only the retained region outlives it.
type DeviceContext struct {
	Settings *cachelock.Settings
	Time     *clock.Source
	Retained *retained.Region
	Machine  *interaction.Machine
	Presence *interaction.Presence
	Engine   *power.Engine
	Console  *admin.Console
	Report   power.BootReport

	feedbackUntil time.Time
	lastPoll      time.Time
	feedback      cachelock.Frame
	marquee       int
	readFailures  int
	displayAsleep bool
}

// Feedback returns the transient admin feedback frame and until when it is
// shown.
func (dc *DeviceContext) Feedback() (cachelock.Frame, time.Time) {
	return dc.feedback, dc.feedbackUntil
}

func (dc *DeviceContext) statusFields() []string {
	return []string{
		"mode=" + dc.Machine.Mode().String(),
		"cause=" + dc.Report.Cause.String(),
		"boot=" + dc.Report.ID.String()[:8],
	}
}

// Boot builds a DeviceContext: settings from the store, retained state,
// peripherals up, then clock reconciliation.
func (c *Controller) Boot(ctx context.Context, cause power.WakeCause) *DeviceContext {
	settings, err := c.cfg.Store.Load()
	if err != nil {
		c.logger.Error("failed to load settings, using defaults", "error", err)
		settings = cachelock.DefaultSettings()
	}

	region, err := retained.Open(c.cfg.Retained)
	if err != nil {
		c.logger.Warn("retained state unreadable, starting empty", "error", err)
	}

	src := c.cfg.NewClock(region, settings.Location())

	if err := c.cfg.NFC.PowerUp(ctx); err != nil {
		c.logger.Warn("reader power up failed", "error", err)
		c.resetReader(ctx)
	}
	if err := c.cfg.Display.Wake(); err != nil {
		c.logger.Warn("display wake failed", "error", err)
	}

	report := power.Reconcile(ctx, src, region.Snapshot(), cause, c.logger)

	dc := &DeviceContext{
		Settings: settings,
		Time:     src,
		Retained: region,
		Machine:  interaction.NewMachine(settings, c.clock.Now()),
		Presence: interaction.NewPresence(0),
		Report:   report,
	}
	dc.Engine = power.NewEngine(power.Config{
		Clock:     src,
		NFC:       c.cfg.NFC,
		Display:   c.cfg.Display,
		Radio:     c.cfg.Radio,
		Suspender: c.cfg.Suspender,
		Planner:   region,
		Settings:  settings,
		Logger:    c.logger,
		Flush:     c.flush,
	})
	dc.Console = admin.NewConsole(admin.ConsoleConfig{
		Settings: settings,
		Store:    c.cfg.Store,
		Clock:    src,
		NFC:      c.cfg.NFC,
		Wake:     c.cfg.Suspender,
		Retained: region,
		Status:   dc.statusFields,
		Logger:   c.logger,
	})
	return dc
}
