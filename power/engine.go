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

package power

import (
	"context"
	"errors"
	"fmt"
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/internal/retry"
)

// Config wires an Engine to its collaborators. Settings is shared with the
// rest of the device and read on every decision.
type Config struct {
	Clock     TimeSource
	NFC       cachelock.NFC
	Display   cachelock.Display
	Radio     Radio
	Suspender Suspender
	Planner   WakePlanner
	Settings  *cachelock.Settings
	Logger    *logging.Logger
	// Flush drains pending console output before suspending.
	Flush func() error

	AutoPollAttempts int
	AutoPollDelay    time.Duration
}

// Engine is the sleep policy engine.
type Engine struct {
	clock     TimeSource
	nfc       cachelock.NFC
	display   cachelock.Display
	radio     Radio
	suspender Suspender
	planner   WakePlanner
	settings  *cachelock.Settings
	logger    *logging.Logger
	flush     func() error

	autoPollAttempts int
	autoPollDelay    time.Duration
}

// NewEngine creates an Engine. Clock, NFC, Display, Suspender and Settings
// are required.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		clock:            cfg.Clock,
		nfc:              cfg.NFC,
		display:          cfg.Display,
		radio:            cfg.Radio,
		suspender:        cfg.Suspender,
		planner:          cfg.Planner,
		settings:         cfg.Settings,
		logger:           cfg.Logger,
		flush:            cfg.Flush,
		autoPollAttempts: cfg.AutoPollAttempts,
		autoPollDelay:    cfg.AutoPollDelay,
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	e.logger = e.logger.WithComponent("power")
	if e.autoPollAttempts <= 0 {
		e.autoPollAttempts = 3
	}
	if e.autoPollDelay <= 0 {
		e.autoPollDelay = 200 * time.Millisecond
	}
	return e
}

// IsQuietNow reports whether the local hour is inside the quiet window. An
// invalid clock is never quiet.
func (e *Engine) IsQuietNow() bool {
	local, valid := e.clock.LocalTime()
	if !valid {
		return false
	}
	return cachelock.IsQuietHour(local.Hour(), e.settings.Quiet)
}

// Decide picks a sleep variant from the time since the last interaction.
// now and lastActivity come from the same monotonic clock.
func (e *Engine) Decide(now, lastActivity time.Time) Decision {
	idle := now.Sub(lastActivity)
	if e.IsQuietNow() {
		if idle >= e.settings.NightIdle {
			return DecisionNightSleep
		}
		return DecisionNone
	}
	if idle >= e.settings.DayIdle {
		return DecisionDaySleep
	}
	return DecisionNone
}

// Enter runs the sleep variant for d. DecisionNone is a no-op.
func (e *Engine) Enter(ctx context.Context, d Decision) error {
	switch d {
	case DecisionNightSleep:
		return e.EnterNightSleep(ctx)
	case DecisionDaySleep:
		return e.EnterDaySleep(ctx)
	default:
		return nil
	}
}

// EnterNightSleep powers everything down and sleeps on a timer until the end
// of quiet hours, or for NightFallbackNap when the time is unknown. It is
// the only path that powers the reader down.
func (e *Engine) EnterNightSleep(ctx context.Context) error {
	e.logger.Info("entering night sleep")
	e.radioDown()
	e.step("display sleep", e.display.Sleep())
	e.step("nfc power down", e.nfc.PowerDown())
	e.step("disarm wake sources", e.suspender.DisarmAll())
	e.step("hold tag line", e.suspender.HoldTagLine())

	if !e.clock.Valid() {
		e.logger.Info("time invalid, attempting sync before night sleep")
		e.clock.Sync(ctx, NightSyncConnectTimeout, NightSyncTimeout)
	}

	var (
		duration time.Duration
		planned  int64
	)
	if local, valid := e.clock.LocalTime(); valid {
		duration = NightSleepDuration(local, e.settings.Quiet.EndHour)
		planned = local.Add(duration).Unix()
	} else {
		duration = NightFallbackNap
	}
	e.plan(planned)

	return e.suspend(ctx, WakeSpec{Timer: duration})
}

// EnterDaySleep leaves the reader polling on its own and sleeps until it
// raises its IRQ line, or until the optional fallback timer fires.
func (e *Engine) EnterDaySleep(ctx context.Context) error {
	e.logger.Info("entering day sleep")
	e.radioDown()
	e.step("display sleep", e.display.Sleep())
	e.step("nfc power up", e.nfc.PowerUp(ctx))

	err := retry.Do(ctx, retry.Config{
		Description: "start autonomous poll",
		MaxAttempts: e.autoPollAttempts,
		Delay:       e.autoPollDelay,
	}, func(int) error {
		return e.nfc.StartAutonomousPoll(ctx)
	})
	if err != nil {
		e.logger.Warn("autonomous poll not armed, tag wake unavailable until next boot", "error", err)
	}

	e.step("drain nfc responses", e.nfc.DrainResponses())
	e.step("disarm wake sources", e.suspender.DisarmAll())

	spec := WakeSpec{TagEdge: true}
	var planned int64
	if fallback := e.settings.WakeFallback; fallback > 0 {
		spec.Timer = fallback
		if local, valid := e.clock.LocalTime(); valid {
			planned = local.Add(fallback).Unix()
		}
	}
	e.plan(planned)

	return e.suspend(ctx, spec)
}

func (e *Engine) suspend(ctx context.Context, spec WakeSpec) error {
	if e.flush != nil {
		e.step("flush output", e.flush())
	}
	e.logger.Info("suspending", "wake", spec.String())
	if err := e.suspender.Suspend(ctx, spec); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSuspended, err)
	}
	e.logger.Info("woke", "cause", e.suspender.WakeCause().String())
	return ErrSuspended
}

func (e *Engine) radioDown() {
	if e.radio == nil {
		return
	}
	e.step("radio down", e.radio.Down())
}

func (e *Engine) plan(epoch int64) {
	if e.planner == nil {
		return
	}
	e.step("record planned wake", e.planner.PlanWake(epoch))
}

// step logs a failed shutdown step; none of them may block sleeping.
func (e *Engine) step(name string, err error) {
	if err != nil {
		e.logger.Warn("sleep step failed", "step", name, "error", err)
	}
}
