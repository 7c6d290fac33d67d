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

package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/clock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/power"
	"github.com/ZaparooProject/go-cachelock/retained"
)

// Console response prefixes.
const (
	RespOK           = "OK"
	RespErr          = "ERR"
	RespUnrecognized = "unrecognized command"
)

// CivilTimeLayout is the layout accepted by settime.
const CivilTimeLayout = "2006-01-02 15:04:05"

// Timeouts for the console sync verb.
const (
	SyncConnectTimeout = 20 * time.Second
	SyncTimeout        = 10 * time.Second
)

// TimeControl is the part of the clock source the console drives.
type TimeControl interface {
	Valid() bool
	Reason() string
	LocalTime() (time.Time, bool)
	Location() *time.Location
	SetLocation(loc *time.Location)
	Sync(ctx context.Context, connectTimeout, syncTimeout time.Duration) bool
	SetFromInstant(epoch int64, reason string) bool
}

// WakeInfo reports wake source state for diagnostics.
type WakeInfo interface {
	WakeCause() power.WakeCause
	Armed() power.WakeSpec
}

// RetainedView exposes the retained region read-only.
type RetainedView interface {
	Snapshot() retained.State
}

// Response is the console's answer to one line.
type Response struct {
	Text string
	// Sleep asks the caller to enter night sleep now.
	Sleep bool
	// Changed is set when settings were modified and saved.
	Changed bool
}

// ConsoleConfig wires a Console.
type ConsoleConfig struct {
	Settings *cachelock.Settings
	Store    cachelock.SettingsStore
	Clock    TimeControl
	NFC      cachelock.NFC
	Wake     WakeInfo
	Retained RetainedView
	// Status returns extra key=value fields for the status verb, such as
	// the current mode.
	Status func() []string
	Logger *logging.Logger
}

// Console executes operator commands.
type Console struct {
	cfg    ConsoleConfig
	logger *logging.Logger
}

// NewConsole creates a Console.
func NewConsole(cfg ConsoleConfig) *Console {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Console{cfg: cfg, logger: logger.WithComponent("console")}
}

type handler func(ctx context.Context, args []string) Response

const helpText = `OK commands:
  status | time | sync | sleep | help
  allow add|remove <uid> | allow clear | allow list
  set <key> <value> | get <key> | code <4 chars>
  quiet on|off | quiet set <start> <end>
  settime <YYYY-MM-DD HH:MM:SS> | settime epoch <n> | tz <name>
  diag irq | diag wake | cfg <key=value;...>`

// Handle executes one line.
func (c *Console) Handle(ctx context.Context, line string) Response {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Response{}
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	handlers := map[string]handler{
		"help":    func(context.Context, []string) Response { return Response{Text: helpText} },
		"status":  c.status,
		"allow":   c.allow,
		"set":     c.set,
		"get":     c.get,
		"code":    c.code,
		"quiet":   c.quiet,
		"time":    c.showTime,
		"sync":    c.sync,
		"settime": c.settime,
		"tz":      c.tz,
		"diag":    c.diag,
		"cfg":     c.cfgPayload,
		"sleep":   c.sleep,
	}

	h, found := handlers[verb]
	if !found {
		return Response{Text: RespUnrecognized + ": " + fields[0]}
	}
	c.logger.Debug("console command", "verb", verb)
	// set, tz, cfg and settime take free text after the verb.
	switch verb {
	case "set", "cfg", "settime", "tz":
		rest := strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])
		args = splitRest(verb, rest)
	}
	return h(ctx, args)
}

func splitRest(verb, rest string) []string {
	if rest == "" {
		return nil
	}
	switch verb {
	case "set":
		key, value, _ := strings.Cut(rest, " ")
		return []string{key, strings.TrimSpace(value)}
	default:
		return []string{rest}
	}
}

func ok(format string, args ...any) Response {
	if format == "" {
		return Response{Text: RespOK}
	}
	return Response{Text: RespOK + " " + fmt.Sprintf(format, args...)}
}

func fail(err error) Response {
	return Response{Text: RespErr + " " + err.Error()}
}

func failf(format string, args ...any) Response {
	return Response{Text: RespErr + " " + fmt.Sprintf(format, args...)}
}

// persist saves settings after a mutation.
func (c *Console) persist(resp Response) Response {
	if err := c.cfg.Store.Save(c.cfg.Settings); err != nil {
		c.logger.Error("failed to save settings", "error", err)
		return fail(fmt.Errorf("save settings: %w", err))
	}
	resp.Changed = true
	return resp
}

func (c *Console) status(context.Context, []string) Response {
	s := c.cfg.Settings
	local, valid := c.cfg.Clock.LocalTime()
	timeField := "unknown"
	if valid {
		timeField = local.Format(time.RFC3339)
	}
	fields := []string{
		"time=" + timeField,
		"source=" + orDash(c.cfg.Clock.Reason()),
		"quiet=" + strings.ReplaceAll(s.Quiet.String(), " ", ","),
		"tz=" + s.Timezone,
		"allow=" + strconv.Itoa(s.AllowList.Len()),
	}
	if c.cfg.Status != nil {
		fields = append(fields, c.cfg.Status()...)
	}
	return ok("%s", strings.Join(fields, " "))
}

func (c *Console) allow(_ context.Context, args []string) Response {
	if len(args) == 0 {
		return failf("usage: allow add|remove <uid> | allow clear | allow list")
	}
	list := c.cfg.Settings.AllowList
	switch strings.ToLower(args[0]) {
	case "list":
		uids := list.List()
		if len(uids) == 0 {
			return ok("allow list empty, any valid tag accepted")
		}
		return ok("%d/%d %s", len(uids), cachelock.AllowListCapacity, strings.Join(uids, " "))
	case "clear":
		list.Clear()
		return c.persist(ok("allow list cleared"))
	case "add", "remove":
		if len(args) < 2 {
			return failf("usage: allow %s <uid>", args[0])
		}
		uid := strings.Join(args[1:], "")
		var err error
		if strings.EqualFold(args[0], "add") {
			err = list.Add(uid)
		} else {
			err = list.Remove(uid)
		}
		if err != nil {
			return fail(err)
		}
		return c.persist(ok("%d/%d", list.Len(), cachelock.AllowListCapacity))
	default:
		return failf("unknown allow action %q", args[0])
	}
}

func (c *Console) set(_ context.Context, args []string) Response {
	if len(args) < 2 || args[1] == "" {
		return failf("usage: set <key> <value>")
	}
	if err := c.cfg.Settings.Set(args[0], args[1]); err != nil {
		return fail(err)
	}
	c.applyTimezone(args[0])
	value, _ := c.cfg.Settings.Get(args[0])
	return c.persist(ok("%s=%s", strings.ToLower(args[0]), value))
}

func (c *Console) get(_ context.Context, args []string) Response {
	if len(args) != 1 {
		return failf("usage: get <key>")
	}
	value, found := c.cfg.Settings.Get(args[0])
	if !found {
		return fail(fmt.Errorf("%w: %s", cachelock.ErrUnknownKey, args[0]))
	}
	return ok("%s=%s", strings.ToLower(args[0]), value)
}

func (c *Console) code(_ context.Context, args []string) Response {
	if len(args) != 1 {
		return fail(cachelock.ErrInvalidCode)
	}
	if err := c.cfg.Settings.Set(cachelock.KeyCode, args[0]); err != nil {
		return fail(err)
	}
	return c.persist(ok(""))
}

func (c *Console) quiet(_ context.Context, args []string) Response {
	if len(args) == 0 {
		return ok("quiet %s", c.cfg.Settings.Quiet)
	}
	s := c.cfg.Settings
	switch strings.ToLower(args[0]) {
	case "on", "off":
		s.Quiet.Enabled = strings.EqualFold(args[0], "on")
	case "set":
		if len(args) != 3 {
			return failf("usage: quiet set <start> <end>")
		}
		next := s.Clone()
		if err := next.Set(cachelock.KeyQuietStart, args[1]); err != nil {
			return fail(err)
		}
		if err := next.Set(cachelock.KeyQuietEnd, args[2]); err != nil {
			return fail(err)
		}
		s.Quiet.StartHour = next.Quiet.StartHour
		s.Quiet.EndHour = next.Quiet.EndHour
	default:
		return failf("usage: quiet on|off|set <start> <end>")
	}
	return c.persist(ok("quiet %s", s.Quiet))
}

func (c *Console) showTime(context.Context, []string) Response {
	local, valid := c.cfg.Clock.LocalTime()
	if !valid {
		return ok("time unknown")
	}
	return ok("%s %s source=%s", local.Format(CivilTimeLayout), local.Location(), orDash(c.cfg.Clock.Reason()))
}

func (c *Console) sync(ctx context.Context, _ []string) Response {
	if !c.cfg.Clock.Sync(ctx, SyncConnectTimeout, SyncTimeout) {
		return failf("time sync failed")
	}
	local, _ := c.cfg.Clock.LocalTime()
	return ok("synced %s", local.Format(CivilTimeLayout))
}

func (c *Console) settime(_ context.Context, args []string) Response {
	if len(args) == 0 {
		return failf("usage: settime <YYYY-MM-DD HH:MM:SS> | settime epoch <n>")
	}
	raw := args[0]
	var epoch int64
	if rest, isEpoch := strings.CutPrefix(strings.ToLower(raw), "epoch"); isEpoch {
		n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return fail(fmt.Errorf("%w: epoch %q", cachelock.ErrInvalidValue, strings.TrimSpace(rest)))
		}
		epoch = n
	} else {
		t, err := time.ParseInLocation(CivilTimeLayout, raw, c.cfg.Clock.Location())
		if err != nil {
			return fail(fmt.Errorf("%w: expected %s", cachelock.ErrInvalidValue, CivilTimeLayout))
		}
		epoch = t.Unix()
	}
	if !c.cfg.Clock.SetFromInstant(epoch, clock.ReasonManual) {
		return failf("clock not set")
	}
	local, _ := c.cfg.Clock.LocalTime()
	return ok("%s", local.Format(CivilTimeLayout))
}

func (c *Console) tz(_ context.Context, args []string) Response {
	if len(args) == 0 {
		return ok("tz %s", c.cfg.Settings.Timezone)
	}
	if err := c.cfg.Settings.Set(cachelock.KeyTimezone, args[0]); err != nil {
		return fail(err)
	}
	c.applyTimezone(cachelock.KeyTimezone)
	return c.persist(ok("tz %s", c.cfg.Settings.Timezone))
}

func (c *Console) diag(_ context.Context, args []string) Response {
	if len(args) != 1 {
		return failf("usage: diag irq|wake")
	}
	switch strings.ToLower(args[0]) {
	case "irq":
		level := "low"
		if c.cfg.NFC != nil && c.cfg.NFC.IRQLevel() {
			level = "high"
		}
		return ok("irq=%s", level)
	case "wake":
		fields := []string{}
		if c.cfg.Wake != nil {
			fields = append(fields,
				"cause="+c.cfg.Wake.WakeCause().String(),
				"armed="+strings.ReplaceAll(c.cfg.Wake.Armed().String(), " ", "_"))
		}
		if c.cfg.Retained != nil {
			st := c.cfg.Retained.Snapshot()
			fields = append(fields,
				"planned_wake="+strconv.FormatInt(st.PlannedWakeEpoch, 10),
				"last_sync="+strconv.FormatInt(st.LastSyncEpoch, 10))
		}
		fields = append(wakeFallbackField(c.cfg.Settings), fields...)
		return ok("%s", strings.Join(fields, " "))
	default:
		return failf("usage: diag irq|wake")
	}
}

func wakeFallbackField(s *cachelock.Settings) []string {
	value, _ := s.Get(cachelock.KeyWakeFallback)
	return []string{"wakefallback=" + value}
}

func (c *Console) cfgPayload(_ context.Context, args []string) Response {
	if len(args) == 0 {
		return failf("usage: cfg <key=value;...>")
	}
	res, err := Apply(c.cfg.Settings, args[0])
	if err != nil {
		return fail(err)
	}
	for _, key := range res.Applied {
		c.applyTimezone(key)
	}
	text := res.Summary()
	for _, ke := range res.Rejected {
		text += "; " + ke.Error()
	}
	if len(res.Applied) == 0 {
		return failf("%s", text)
	}
	return c.persist(ok("%s", text))
}

func (c *Console) sleep(context.Context, []string) Response {
	return Response{Text: RespOK + " sleeping", Sleep: true}
}

func (c *Console) applyTimezone(key string) {
	if strings.EqualFold(strings.TrimSpace(key), cachelock.KeyTimezone) {
		c.cfg.Clock.SetLocation(c.cfg.Settings.Location())
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// IsOK reports whether a response line is a success.
func IsOK(line string) bool {
	return line == RespOK || strings.HasPrefix(line, RespOK+" ")
}

// ResponseError converts a response line into an error, nil for OK.
func ResponseError(line string) error {
	switch {
	case IsOK(line):
		return nil
	case strings.HasPrefix(line, RespErr):
		return errors.New(strings.TrimSpace(strings.TrimPrefix(line, RespErr)))
	default:
		return errors.New(line)
	}
}
