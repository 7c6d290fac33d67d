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

// Package power decides when the device may sleep, performs the peripheral
// shutdown sequence for each sleep variant and reconciles the clock on boot.
//
// There are two mutually exclusive sleep variants. Night sleep powers the
// reader down and arms only a timer that expires at the end of quiet hours.
// Day sleep keeps the reader powered and polling on its own so a tag wakes
// the device through the reader's IRQ line.
//
// Suspending is total: once a Suspender returns, the caller discards every
// piece of working state and starts again from boot with only the retained
// region intact. EnterNightSleep and EnterDaySleep signal this by returning
// ErrSuspended.
package power

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSuspended is returned after the device has woken from a sleep. The
	// caller must restart from boot.
	ErrSuspended = errors.New("device suspended")
	// ErrNoWakeSource is returned when a suspend would have no way to wake.
	ErrNoWakeSource = errors.New("no wake source armed")
)

// Timeouts used for the forced syncs around sleep and boot.
const (
	NightSyncConnectTimeout = 5 * time.Second
	NightSyncTimeout        = 3 * time.Second
	BootSyncConnectTimeout  = 20 * time.Second
	BootSyncTimeout         = 10 * time.Second
)

// NightFallbackNap is the sleep length used when the clock is not valid.
const NightFallbackNap = 30 * time.Minute

// MinNightSleep keeps the device from thrashing right at the end hour.
const MinNightSleep = time.Minute

// Decision is the outcome of one policy evaluation.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionNightSleep
	DecisionDaySleep
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionNightSleep:
		return "night-sleep"
	case DecisionDaySleep:
		return "day-sleep"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// WakeCause is why the device is booting.
type WakeCause int

const (
	WakeCold WakeCause = iota
	WakeTimer
	WakeTag
)

func (c WakeCause) String() string {
	switch c {
	case WakeCold:
		return "cold"
	case WakeTimer:
		return "timer"
	case WakeTag:
		return "tag"
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

// WakeSpec lists the wake sources armed for a suspend.
type WakeSpec struct {
	// Timer wakes after this long. Zero leaves the timer disarmed.
	Timer time.Duration
	// TagEdge wakes on a falling edge of the reader IRQ line.
	TagEdge bool
}

// Empty reports whether nothing is armed.
func (w WakeSpec) Empty() bool {
	return w.Timer <= 0 && !w.TagEdge
}

func (w WakeSpec) String() string {
	switch {
	case w.Empty():
		return "none"
	case w.Timer > 0 && w.TagEdge:
		return fmt.Sprintf("timer %s + tag irq", w.Timer)
	case w.Timer > 0:
		return fmt.Sprintf("timer %s", w.Timer)
	default:
		return "tag irq"
	}
}

// Suspender arms wake sources and suspends the host.
type Suspender interface {
	// DisarmAll clears every wake source.
	DisarmAll() error
	// HoldTagLine holds the reader IRQ line at its idle level so it cannot
	// trigger while the reader is powered down.
	HoldTagLine() error
	// Suspend arms spec and blocks until one of its sources fires.
	Suspend(ctx context.Context, spec WakeSpec) error
	// WakeCause reports why the last Suspend returned, WakeCold before the
	// first one.
	WakeCause() WakeCause
	// Armed reports the wake sources of the last Suspend.
	Armed() WakeSpec
}

// TimeSource is the clock the engine consults. *clock.Source implements it.
type TimeSource interface {
	Valid() bool
	Reason() string
	LocalTime() (time.Time, bool)
	Sync(ctx context.Context, connectTimeout, syncTimeout time.Duration) bool
	SetFromInstant(epoch int64, reason string) bool
}

// Radio is the network radio. Sleep entry always takes it down first.
type Radio interface {
	Down() error
}

// WakePlanner records the planned wake instant before sleeping.
// *retained.Region implements it.
type WakePlanner interface {
	PlanWake(epoch int64) error
}

// NightSleepDuration returns the time from local until the next endHour:00,
// wrapping to the next day once the hour has passed. The result is never
// below MinNightSleep.
func NightSleepDuration(local time.Time, endHour int) time.Duration {
	end := time.Date(local.Year(), local.Month(), local.Day(), endHour, 0, 0, 0, local.Location())
	if end.Before(local) {
		end = end.AddDate(0, 0, 1)
	}
	d := end.Sub(local)
	if d < MinNightSleep {
		d = MinNightSleep
	}
	return d
}
