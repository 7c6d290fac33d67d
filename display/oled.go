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

// Package display renders frames on a monochrome SSD1306 panel.
package display

import (
	"fmt"
	"image"
	"image/draw"
	"slices"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

// DefaultContrast is the panel contrast after Wake.
const DefaultContrast = 0x7F

// Panel is the subset of *ssd1306.Dev used here.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	SetContrast(level byte) error
	Halt() error
}

// OLED implements cachelock.Display. Frames rendered while asleep are kept
// and drawn on the next Wake.
type OLED struct {
	panel  Panel
	logger *logging.Logger
	last   cachelock.Frame

	mu sync.Mutex

	contrast byte
	awake    bool
	drawn    bool
}

// Option configures an OLED.
type Option func(*OLED)

// WithContrast sets the contrast applied on Wake.
func WithContrast(level byte) Option {
	return func(o *OLED) { o.contrast = level }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *OLED) { o.logger = l }
}

// New wraps panel. The panel is assumed lit, as after initialization.
func New(panel Panel, opts ...Option) *OLED {
	o := &OLED{panel: panel, contrast: DefaultContrast, awake: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	o.logger = o.logger.WithComponent("display")
	return o
}

// OpenI2C initializes a 128x64 SSD1306 on bus.
func OpenI2C(bus i2c.Bus, opts ...Option) (*OLED, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ssd1306: %w", err)
	}
	return New(dev, opts...), nil
}

// Wake turns the panel on and redraws the last frame.
func (o *OLED) Wake() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.awake {
		return nil
	}
	// Any command after Halt re-enables the panel.
	if err := o.panel.SetContrast(o.contrast); err != nil {
		return fmt.Errorf("wake panel: %w", err)
	}
	o.awake = true
	o.drawn = false
	return o.draw()
}

// Sleep turns the panel off.
func (o *OLED) Sleep() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.awake {
		return nil
	}
	if err := o.panel.Halt(); err != nil {
		return fmt.Errorf("halt panel: %w", err)
	}
	o.awake = false
	return nil
}

// Render shows frame. Repeating the frame on screen is a no-op.
func (o *OLED) Render(frame cachelock.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.drawn && sameFrame(o.last, frame) {
		return nil
	}
	o.last = frame
	o.drawn = false
	if !o.awake {
		return nil
	}
	return o.draw()
}

// Awake reports whether the panel is lit.
func (o *OLED) Awake() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.awake
}

func (o *OLED) draw() error {
	bounds := o.panel.Bounds()
	img := image1bit.NewVerticalLSB(bounds)
	draw.Draw(img, bounds, Render(o.last, bounds), bounds.Min, draw.Src)
	if err := o.panel.Draw(bounds, img, bounds.Min); err != nil {
		return fmt.Errorf("draw %s frame: %w", o.last.Kind, err)
	}
	o.drawn = true
	o.logger.Debug("frame drawn", "kind", o.last.Kind)
	return nil
}

func sameFrame(a, b cachelock.Frame) bool {
	return a.Kind == b.Kind && a.Scroll == b.Scroll && slices.Equal(a.Lines, b.Lines)
}

var _ cachelock.Display = (*OLED)(nil)
