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

// Package nfc drives a PN532 reader over I2C and implements
// cachelock.NFC. Only ISO14443A tags are polled; text payloads are read
// from NTAG2xx user memory.
package nfc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"

	cachelock "github.com/ZaparooProject/go-cachelock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/internal/retry"
)

const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
	cmdInAutoPoll          = 0x60

	samNormalMode  = 0x01
	samTimeout     = 0x14 // 20 * 50ms
	samUseIRQ      = 0x01
	rfMaxRetries   = 0x05
	baudrate106A   = 0x00
	autoPollAll    = 0xFF
	autoPollPeriod = 0x02 // 2 * 150ms
	autoPollTypeA  = 0x10

	maxDrainFrames = 4
)

// Defaults for the Reader timings.
const (
	DefaultAckTimeout      = 50 * time.Millisecond
	DefaultCommandTimeout  = 200 * time.Millisecond
	DefaultResetPulse      = 10 * time.Millisecond
	DefaultSettle          = 50 * time.Millisecond
	DefaultPassiveRetries  = 0x10
	defaultStep            = time.Millisecond
	defaultConfigAttempts  = 3
	defaultConfigRetryWait = 20 * time.Millisecond
)

// FirmwareVersion is the GetFirmwareVersion answer.
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// Reader is a PN532 on an I2C connection with optional reset and IRQ lines.
type Reader struct {
	t      transport
	rst    gpio.PinOut
	irq    gpio.PinIn
	logger *logging.Logger

	selected []byte

	ackTimeout     time.Duration
	commandTimeout time.Duration
	resetPulse     time.Duration
	settle         time.Duration

	mu sync.Mutex

	target         byte
	passiveRetries byte
	powered        bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithResetPin sets the RSTPDN line. Without it PowerDown only marks the
// reader unpowered.
func WithResetPin(p gpio.PinOut) Option {
	return func(r *Reader) { r.rst = p }
}

// WithIRQPin sets the IRQ line read by IRQLevel.
func WithIRQPin(p gpio.PinIn) Option {
	return func(r *Reader) { r.irq = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// WithTimeouts sets the ACK and command response timeouts.
func WithTimeouts(ack, command time.Duration) Option {
	return func(r *Reader) {
		if ack > 0 {
			r.ackTimeout = ack
		}
		if command > 0 {
			r.commandTimeout = command
		}
	}
}

// WithResetTiming sets how long the reset line is held low and how long the
// chip is given to start after release.
func WithResetTiming(pulse, settle time.Duration) Option {
	return func(r *Reader) {
		r.resetPulse = pulse
		r.settle = settle
	}
}

// WithPassiveRetries sets how many activation attempts the chip makes per
// tag poll before reporting no target.
func WithPassiveRetries(n byte) Option {
	return func(r *Reader) { r.passiveRetries = n }
}

// New creates a Reader on c. The reader starts unpowered; call PowerUp.
func New(c conn.Conn, opts ...Option) *Reader {
	r := &Reader{
		t:              transport{conn: c, step: defaultStep},
		ackTimeout:     DefaultAckTimeout,
		commandTimeout: DefaultCommandTimeout,
		resetPulse:     DefaultResetPulse,
		settle:         DefaultSettle,
		passiveRetries: DefaultPassiveRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	r.logger = r.logger.WithComponent("nfc")
	return r
}

// PowerUp releases RSTPDN and configures the chip for normal mode with IRQ
// signalling.
func (r *Reader) PowerUp(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powerUp(ctx)
}

func (r *Reader) powerUp(ctx context.Context) error {
	if r.rst != nil {
		if err := r.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("release reset: %w", err)
		}
		if err := retry.Sleep(ctx, r.settle); err != nil {
			return err
		}
	}
	r.powered = true
	r.selected = nil

	err := retry.Do(ctx, retry.Config{
		Description: "configure pn532",
		MaxAttempts: defaultConfigAttempts,
		Delay:       defaultConfigRetryWait,
	}, func(int) error {
		return r.configure(ctx)
	})
	if err != nil {
		return err
	}
	r.logger.Debug("reader powered up")
	return nil
}

func (r *Reader) configure(ctx context.Context) error {
	if _, err := r.call(ctx, cmdSAMConfiguration, []byte{samNormalMode, samTimeout, samUseIRQ}); err != nil {
		return fmt.Errorf("sam configuration: %w", err)
	}
	args := []byte{rfMaxRetries, 0xFF, 0x01, r.passiveRetries}
	if _, err := r.call(ctx, cmdRFConfiguration, args); err != nil {
		return fmt.Errorf("rf configuration: %w", err)
	}
	return nil
}

// PowerDown asserts RSTPDN. Commands fail with ErrNotPowered until the next
// PowerUp.
func (r *Reader) PowerDown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.powered = false
	r.selected = nil
	if r.rst == nil {
		return nil
	}
	if err := r.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	r.logger.Debug("reader powered down")
	return nil
}

// HardReset pulses RSTPDN and reconfigures the chip.
func (r *Reader) HardReset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rst != nil {
		if err := r.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("assert reset: %w", err)
		}
		if err := retry.Sleep(ctx, r.resetPulse); err != nil {
			return err
		}
	}
	r.logger.Info("hard reset")
	return r.powerUp(ctx)
}

// FirmwareVersion queries the chip version.
func (r *Reader) FirmwareVersion(ctx context.Context) (FirmwareVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.call(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return FirmwareVersion{}, err
	}
	if len(res) < 4 {
		return FirmwareVersion{}, fmt.Errorf("%w: short firmware version", ErrUnexpectedResponse)
	}
	return FirmwareVersion{IC: res[0], Version: res[1], Revision: res[2], Support: res[3]}, nil
}

// TryReadTagID polls once for an ISO14443A tag and selects it for
// ReadTextPayload.
func (r *Reader) TryReadTagID(ctx context.Context, timeout time.Duration) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selected = nil
	if !r.powered {
		return nil, cachelock.ErrNotPowered
	}
	if timeout <= 0 {
		timeout = r.commandTimeout
	}

	res, err := r.t.call(ctx, cmdInListPassiveTarget, []byte{0x01, baudrate106A}, r.ackTimeout, timeout)
	if errors.Is(err, ErrTimeout) {
		_ = r.t.abort()
		return nil, cachelock.ErrNoTag
	}
	if err != nil {
		return nil, err
	}

	target, uid, err := parseTarget(res)
	if err != nil {
		return nil, err
	}
	r.target = target
	r.selected = uid
	return append([]byte(nil), uid...), nil
}

// parseTarget decodes [NbTg, Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID...].
func parseTarget(res []byte) (byte, []byte, error) {
	if len(res) == 0 || res[0] == 0 {
		return 0, nil, cachelock.ErrNoTag
	}
	if len(res) < 6 {
		return 0, nil, fmt.Errorf("%w: short target data", ErrUnexpectedResponse)
	}
	n := int(res[5])
	if n == 0 || len(res) < 6+n {
		return 0, nil, fmt.Errorf("%w: uid length %d", ErrUnexpectedResponse, n)
	}
	return res[1], res[6 : 6+n], nil
}

// ReadTextPayload reads the NDEF message of the selected tag and returns
// its first text record.
func (r *Reader) ReadTextPayload(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.powered {
		return "", cachelock.ErrNotPowered
	}
	if r.selected == nil {
		return "", cachelock.ErrNoTag
	}

	msg, err := readNDEF(ctx, r.readPages)
	if err != nil {
		return "", err
	}
	return firstText(msg)
}

// readPages issues NTAG READ at page and returns the 16 bytes answered.
func (r *Reader) readPages(ctx context.Context, page byte) ([]byte, error) {
	res, err := r.call(ctx, cmdInDataExchange, []byte{r.target, ntagRead, page})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty data exchange", ErrUnexpectedResponse)
	}
	if status := res[0] & 0x3F; status != 0 {
		return nil, fmt.Errorf("%w: data exchange status 0x%02X", ErrUnexpectedResponse, status)
	}
	if len(res) < 1+pageChunk {
		return nil, fmt.Errorf("%w: short page read", ErrUnexpectedResponse)
	}
	return res[1 : 1+pageChunk], nil
}

// Release deselects the current target.
func (r *Reader) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.powered {
		return cachelock.ErrNotPowered
	}
	r.selected = nil
	_, err := r.call(ctx, cmdInRelease, []byte{0x00})
	return err
}

// StartAutonomousPoll issues InAutoPoll and returns once the chip has
// acknowledged it. The chip answers, and pulls IRQ low, when a tag arrives.
func (r *Reader) StartAutonomousPoll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.powered {
		return cachelock.ErrNotPowered
	}
	r.selected = nil
	if err := r.t.send(cmdInAutoPoll, []byte{autoPollAll, autoPollPeriod, autoPollTypeA}); err != nil {
		return err
	}
	if err := r.t.waitAck(ctx, time.Now().Add(r.ackTimeout)); err != nil {
		return fmt.Errorf("auto poll: %w", err)
	}
	return nil
}

// DrainResponses reads and discards pending frames.
func (r *Reader) DrainResponses() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.powered {
		return cachelock.ErrNotPowered
	}
	buf := make([]byte, readLength)
	for range maxDrainFrames {
		ok, err := r.t.ready(buf)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		r.logger.Debug("discarded pending frame")
	}
	return nil
}

// IRQLevel reports the IRQ line, true for high. Without an IRQ pin the line
// is reported idle.
func (r *Reader) IRQLevel() bool {
	if r.irq == nil {
		return true
	}
	return r.irq.Read() == gpio.High
}

func (r *Reader) call(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if !r.powered {
		return nil, cachelock.ErrNotPowered
	}
	return r.t.call(ctx, cmd, args, r.ackTimeout, r.commandTimeout)
}

var _ cachelock.NFC = (*Reader)(nil)
