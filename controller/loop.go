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

package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/admin"
	"github.com/ZaparooProject/go-cachelock/clock"
	"github.com/ZaparooProject/go-cachelock/interaction"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/internal/retry"
	"github.com/ZaparooProject/go-cachelock/power"
)

// Controller owns the hardware across boots.
type Controller struct {
	cfg    Config
	clock  clock.Clock
	logger *logging.Logger
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = &clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.TagTimeout <= 0 {
		cfg.TagTimeout = DefaultTagTimeout
	}
	if cfg.FeedbackHold <= 0 {
		cfg.FeedbackHold = DefaultFeedbackHold
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = DefaultLoopInterval
	}
	if cfg.MarqueeStep <= 0 {
		cfg.MarqueeStep = DefaultMarqueeStep
	}
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = DefaultMaxReadFailures
	}
	return &Controller{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger.WithComponent("controller"),
	}, nil
}

// Run boots and loops until ctx is done. Every deep sleep restarts from
// Boot with the cause reported by the suspender.
func (c *Controller) Run(ctx context.Context) error {
	cause := power.WakeCold
	for {
		dc := c.Boot(ctx, cause)
		c.logger.Info("boot complete",
			"boot_id", dc.Report.ID.String(),
			"clock_valid", dc.Report.Valid,
			"clock_source", dc.Report.Source)

		err := c.loop(ctx, dc)
		if !errors.Is(err, power.ErrSuspended) {
			return err
		}
		cause = c.cfg.Suspender.WakeCause()
		c.logger.Info("restarting from boot", "cause", cause.String())
	}
}

func (c *Controller) loop(ctx context.Context, dc *DeviceContext) error {
	for {
		if err := c.Step(ctx, dc); err != nil {
			return err
		}
		if err := retry.Sleep(ctx, c.cfg.LoopInterval); err != nil {
			return err
		}
	}
}

// Step runs one loop iteration. It returns power.ErrSuspended after a deep
// sleep, at which point dc must be discarded.
func (c *Controller) Step(ctx context.Context, dc *DeviceContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := c.clock.Now()

	if resp, ok := c.pollConsole(ctx, dc); ok && resp.Sleep {
		c.logger.Info("sleep requested from console")
		return dc.Engine.EnterNightSleep(ctx)
	}

	if now.Sub(dc.lastPoll) >= dc.Settings.PollInterval {
		dc.lastPoll = now
		c.pollTag(ctx, dc, now)
	}

	if tr := dc.Machine.Tick(now); tr.Changed() {
		c.logger.Debug("mode changed", "from", tr.From.String(), "to", tr.To.String())
	}
	c.render(dc, now)

	return dc.Engine.Enter(ctx, dc.Engine.Decide(now, dc.Machine.LastActivity()))
}

func (c *Controller) pollConsole(ctx context.Context, dc *DeviceContext) (admin.Response, bool) {
	if c.cfg.Console == nil {
		return admin.Response{}, false
	}
	line, ok, err := c.cfg.Console.Poll()
	if err != nil {
		c.logger.Warn("console read failed", "error", err)
		if errors.Is(err, admin.ErrLineTooLong) {
			c.reply(admin.RespErr + " " + err.Error())
		}
		return admin.Response{}, false
	}
	if !ok {
		return admin.Response{}, false
	}

	resp := dc.Console.Handle(ctx, line)
	if resp.Text != "" {
		c.reply(resp.Text)
	}
	return resp, true
}

func (c *Controller) reply(text string) {
	if err := c.cfg.Console.WriteLine(text); err != nil {
		c.logger.Warn("console write failed", "error", err)
	}
}

func (c *Controller) flush() error {
	if c.cfg.Console == nil {
		return nil
	}
	return c.cfg.Console.Flush()
}

// pollTag reads the reader once. Only a tag arriving on the reader is
// handled; one held in place is ignored until it has been lifted.
func (c *Controller) pollTag(ctx context.Context, dc *DeviceContext, now time.Time) {
	uid, err := c.cfg.NFC.TryReadTagID(ctx, c.cfg.TagTimeout)
	switch {
	case errors.Is(err, cachelock.ErrNoTag):
		dc.readFailures = 0
		dc.Presence.Miss(now)
		return
	case err != nil:
		dc.readFailures++
		dc.Presence.Miss(now)
		c.logger.Warn("tag poll failed", "error", err, "failures", dc.readFailures)
		if dc.readFailures >= c.cfg.MaxReadFailures {
			c.resetReader(ctx)
			dc.readFailures = 0
		}
		return
	}

	dc.readFailures = 0
	if !dc.Presence.Observe(now, uid) {
		return
	}
	c.handleArrival(ctx, dc, now, uid)
}

func (c *Controller) handleArrival(ctx context.Context, dc *DeviceContext, now time.Time, uid []byte) {
	id := cachelock.FormatUID(uid)

	text, err := c.cfg.NFC.ReadTextPayload(ctx)
	if err != nil && !errors.Is(err, cachelock.ErrNoPayload) {
		c.logger.Debug("tag payload unreadable", "uid", id, "error", err)
	}
	if err == nil && admin.IsAdminPayload(text) {
		c.applyAdminTag(dc, now, id, text)
		return
	}

	tr := dc.Machine.HandleScan(now, uid)
	c.logger.Info("tag scanned",
		"uid", id,
		"accepted", tr.Accepted,
		"recognized", tr.Recognized,
		"mode", tr.To.String())
}

// applyAdminTag applies a configuration tag without touching the mode.
func (c *Controller) applyAdminTag(dc *DeviceContext, now time.Time, id, payload string) {
	res, err := admin.ApplyAndSave(dc.Settings, c.cfg.Store, payload)
	if err != nil {
		c.logger.Error("admin tag not saved", "uid", id, "error", err)
	}
	for _, key := range res.Applied {
		if strings.EqualFold(key, cachelock.KeyTimezone) {
			dc.Time.SetLocation(dc.Settings.Location())
		}
	}
	for _, ke := range res.Rejected {
		c.logger.Warn("admin key rejected", "uid", id, "key", ke.Key, "error", ke.Err)
	}
	c.logger.Info("admin tag applied", "uid", id, "summary", res.Summary())

	dc.feedback = interaction.FeedbackFrame(len(res.Applied), len(res.Rejected))
	dc.feedbackUntil = now.Add(c.cfg.FeedbackHold)
	dc.Machine.Touch(now)
}

func (c *Controller) render(dc *DeviceContext, now time.Time) {
	mode := dc.Machine.Mode()
	showFeedback := now.Before(dc.feedbackUntil)

	if mode == interaction.ModeBlanked && !showFeedback {
		if !dc.displayAsleep {
			if err := c.cfg.Display.Sleep(); err != nil {
				c.logger.Warn("display sleep failed", "error", err)
			}
			dc.displayAsleep = true
		}
		return
	}
	if dc.displayAsleep {
		if err := c.cfg.Display.Wake(); err != nil {
			c.logger.Warn("display wake failed", "error", err)
		}
		dc.displayAsleep = false
	}

	frame := interaction.FrameFor(mode, dc.Settings)
	if showFeedback {
		frame = dc.feedback
	}
	if frame.Kind == cachelock.FrameMarquee {
		frame.Scroll = dc.marquee
		dc.marquee += c.cfg.MarqueeStep
	}
	if err := c.cfg.Display.Render(frame); err != nil {
		c.logger.Warn("render failed", "kind", frame.Kind, "error", err)
	}
}

func (c *Controller) resetReader(ctx context.Context) {
	if err := c.cfg.NFC.HardReset(ctx); err != nil {
		c.logger.Error("reader reset failed", "error", err)
		return
	}
	c.logger.Info("reader reset")
}
