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

package cachelock

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Minimum values accepted for the timing settings.
const (
	MinWelcome      = 500 * time.Millisecond
	MinReject       = 500 * time.Millisecond
	MinCodeDelay    = 0
	MinActive       = 5 * time.Second
	MinDayIdle      = 10 * time.Second
	MinNightIdle    = 5 * time.Second
	MinPollInterval = 50 * time.Millisecond
	MinWakeFallback = 5 * time.Minute

	UnlockCodeLength = 4
	MaxMarqueeLength = 64
)

// Setting keys shared by the console and admin tags.
const (
	KeyWelcome      = "welcome"
	KeyReject       = "reject"
	KeyCodeDelay    = "codedelay"
	KeyActive       = "active"
	KeyDayIdle      = "dayidle"
	KeyNightIdle    = "nightidle"
	KeyPoll         = "poll"
	KeyWakeFallback = "wakefallback"
	KeyQuietStart   = "qstart"
	KeyQuietEnd     = "qend"
	KeyQuiet        = "quiet"
	KeyCode         = "code"
	KeyTimezone     = "tz"
	KeyMarquee      = "msg"
	KeyAllow        = "allow"
	KeyDeny         = "deny"
)

// Settings is the persisted device configuration.
type Settings struct {
	AllowList *AllowSet

	UnlockCode string
	Timezone   string
	Marquee    string

	Quiet QuietWindow

	Welcome   time.Duration
	Reject    time.Duration
	CodeDelay time.Duration
	// Active is how long the display stays on after the last scan.
	Active time.Duration
	// DayIdle is the inactivity before daytime interrupt-wake sleep.
	DayIdle time.Duration
	// NightIdle is the inactivity before night-timer sleep during quiet hours.
	NightIdle    time.Duration
	PollInterval time.Duration
	// WakeFallback arms an extra timer wake during daytime sleep. Zero
	// disables it.
	WakeFallback time.Duration
}

// DefaultSettings returns the factory configuration.
func DefaultSettings() *Settings {
	return &Settings{
		AllowList:    NewAllowSet(),
		UnlockCode:   "0000",
		Timezone:     "UTC",
		Marquee:      "Scan your tag",
		Quiet:        QuietWindow{Enabled: true, StartHour: 22, EndHour: 7},
		Welcome:      3 * time.Second,
		Reject:       3 * time.Second,
		CodeDelay:    500 * time.Millisecond,
		Active:       60 * time.Second,
		DayIdle:      2 * time.Minute,
		NightIdle:    30 * time.Second,
		PollInterval: 150 * time.Millisecond,
		WakeFallback: 0,
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	if s.AllowList != nil {
		c.AllowList = s.AllowList.Clone()
	} else {
		c.AllowList = NewAllowSet()
	}
	return &c
}

// Location resolves the configured timezone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type durationSetting struct {
	field func(*Settings) *time.Duration
	floor time.Duration
	unit  time.Duration
}

var durationSettings = map[string]durationSetting{
	KeyWelcome:   {field: func(s *Settings) *time.Duration { return &s.Welcome }, floor: MinWelcome, unit: time.Millisecond},
	KeyReject:    {field: func(s *Settings) *time.Duration { return &s.Reject }, floor: MinReject, unit: time.Millisecond},
	KeyCodeDelay: {field: func(s *Settings) *time.Duration { return &s.CodeDelay }, floor: MinCodeDelay, unit: time.Millisecond},
	KeyActive:    {field: func(s *Settings) *time.Duration { return &s.Active }, floor: MinActive, unit: time.Millisecond},
	KeyDayIdle:   {field: func(s *Settings) *time.Duration { return &s.DayIdle }, floor: MinDayIdle, unit: time.Millisecond},
	KeyNightIdle: {field: func(s *Settings) *time.Duration { return &s.NightIdle }, floor: MinNightIdle, unit: time.Millisecond},
	KeyPoll:      {field: func(s *Settings) *time.Duration { return &s.PollInterval }, floor: MinPollInterval, unit: time.Millisecond},
}

// Keys lists every key accepted by Set, sorted.
func Keys() []string {
	keys := []string{
		KeyWakeFallback, KeyQuietStart, KeyQuietEnd, KeyQuiet,
		KeyCode, KeyTimezone, KeyMarquee, KeyAllow, KeyDeny,
	}
	for k := range durationSettings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set applies a single key=value pair. On error the settings are unchanged
// and the returned error is a *KeyError.
func (s *Settings) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if err := s.set(key, value); err != nil {
		return &KeyError{Key: key, Value: value, Err: err}
	}
	return nil
}

func (s *Settings) set(key, value string) error {
	if ds, ok := durationSettings[key]; ok {
		n, err := parseUint(value)
		if err != nil {
			return err
		}
		d, err := scaleDuration(n, ds.unit)
		if err != nil {
			return err
		}
		if d < ds.floor {
			return fmt.Errorf("%w: %d < %d", ErrBelowFloor, n, ds.floor/ds.unit)
		}
		*ds.field(s) = d
		return nil
	}

	switch key {
	case KeyWakeFallback:
		n, err := parseUint(value)
		if err != nil {
			return err
		}
		d, err := scaleDuration(n, time.Minute)
		if err != nil {
			return err
		}
		if d != 0 && d < MinWakeFallback {
			return fmt.Errorf("%w: %d < %d", ErrBelowFloor, n, int(MinWakeFallback/time.Minute))
		}
		s.WakeFallback = d
	case KeyQuietStart, KeyQuietEnd:
		hour, err := parseHour(value)
		if err != nil {
			return err
		}
		if key == KeyQuietStart {
			s.Quiet.StartHour = hour
		} else {
			s.Quiet.EndHour = hour
		}
	case KeyQuiet:
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		s.Quiet.Enabled = on
	case KeyCode:
		if len([]rune(value)) != UnlockCodeLength {
			return ErrInvalidCode
		}
		s.UnlockCode = value
	case KeyTimezone:
		if _, err := time.LoadLocation(value); err != nil || value == "" {
			return fmt.Errorf("%w: unknown timezone", ErrInvalidValue)
		}
		s.Timezone = value
	case KeyMarquee:
		if value == "" || len([]rune(value)) > MaxMarqueeLength {
			return fmt.Errorf("%w: marquee must be 1..%d characters", ErrOutOfRange, MaxMarqueeLength)
		}
		s.Marquee = value
	case KeyAllow:
		return s.AllowList.Add(value)
	case KeyDeny:
		return s.AllowList.Remove(value)
	default:
		return ErrUnknownKey
	}
	return nil
}

// Get renders the current value of key in the form Set accepts.
func (s *Settings) Get(key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if ds, ok := durationSettings[key]; ok {
		return strconv.FormatInt(int64(*ds.field(s)/ds.unit), 10), true
	}
	switch key {
	case KeyWakeFallback:
		return strconv.FormatInt(int64(s.WakeFallback/time.Minute), 10), true
	case KeyQuietStart:
		return strconv.Itoa(s.Quiet.StartHour), true
	case KeyQuietEnd:
		return strconv.Itoa(s.Quiet.EndHour), true
	case KeyQuiet:
		if s.Quiet.Enabled {
			return "1", true
		}
		return "0", true
	case KeyCode:
		return s.UnlockCode, true
	case KeyTimezone:
		return s.Timezone, true
	case KeyMarquee:
		return s.Marquee, true
	}
	return "", false
}

func parseUint(value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative", ErrOutOfRange)
	}
	return n, nil
}

// scaleDuration returns n units, rejecting counts that overflow a Duration.
func scaleDuration(n int64, unit time.Duration) (time.Duration, error) {
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w: %d too large", ErrOutOfRange, n)
	}
	return time.Duration(n) * unit, nil
}

func parseHour(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an hour", ErrInvalidValue, value)
	}
	if n < 0 || n > 23 {
		return 0, fmt.Errorf("%w: hour %d", ErrOutOfRange, n)
	}
	return n, nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "on", "true", "yes", "enable", "enabled":
		return true, nil
	case "0", "off", "false", "no", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not on/off", ErrInvalidValue, value)
}
