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

package nfc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/ZaparooProject/go-cachelock/internal/frame"
	"github.com/ZaparooProject/go-cachelock/internal/retry"
)

const (
	// DefaultAddress is the PN532 7-bit I2C address.
	DefaultAddress = 0x24

	statusReady = 0x01
	maxClock    = 400 * physic.KiloHertz
	readLength  = 1 + frame.MaxDataLength + frame.Overhead
	ackLength   = 1 + 6
	maxNacks    = 3
)

var (
	ErrNoAck              = errors.New("pn532 did not acknowledge")
	ErrTimeout            = errors.New("pn532 response timeout")
	ErrUnexpectedResponse = errors.New("unexpected pn532 response")
)

// NewI2CConn wraps bus at addr, or at DefaultAddress when addr is zero. The
// bus speed is raised to the chip's maximum on a best effort basis.
func NewI2CConn(bus i2c.Bus, addr uint16) conn.Conn {
	if addr == 0 {
		addr = DefaultAddress
	}
	_ = bus.SetSpeed(maxClock)
	return &i2c.Dev{Addr: addr, Bus: bus}
}

// transport frames commands over an I2C connection. Every read starts with
// the PN532 status byte.
type transport struct {
	conn conn.Conn
	step time.Duration
}

func (t *transport) send(cmd byte, args []byte) error {
	frm, err := frame.Build(cmd, args)
	if err != nil {
		return err
	}
	if err := t.conn.Tx(frm, nil); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (t *transport) ready(buf []byte) (bool, error) {
	if err := t.conn.Tx(nil, buf); err != nil {
		return false, fmt.Errorf("read: %w", err)
	}
	return buf[0]&statusReady == statusReady, nil
}

func (t *transport) waitAck(ctx context.Context, deadline time.Time) error {
	buf := make([]byte, ackLength)
	err := retry.Until(ctx, deadline, t.step, func() (bool, error) {
		ok, err := t.ready(buf)
		if err != nil || !ok {
			return false, err
		}
		return frame.IsAck(buf), nil
	})
	if errors.Is(err, retry.ErrDeadline) {
		return ErrNoAck
	}
	return err
}

// receive waits for the response to cmd and returns its payload.
func (t *transport) receive(ctx context.Context, cmd byte, deadline time.Time) ([]byte, error) {
	buf := make([]byte, readLength)
	var (
		payload []byte
		nacks   int
	)
	err := retry.Until(ctx, deadline, t.step, func() (bool, error) {
		ok, err := t.ready(buf)
		if err != nil || !ok {
			return false, err
		}
		data, err := frame.Parse(buf[1:])
		switch {
		case errors.Is(err, frame.ErrDataChecksum), errors.Is(err, frame.ErrLengthChecksum):
			nacks++
			if nacks > maxNacks {
				return false, err
			}
			return false, t.conn.Tx(frame.NackFrame, nil)
		case err != nil:
			return false, err
		}
		if len(data) == 0 || data[0] != cmd+1 {
			return false, fmt.Errorf("%w: 0x%X to command 0x%02X", ErrUnexpectedResponse, data, cmd)
		}
		payload = data[1:]
		return true, nil
	})
	if errors.Is(err, retry.ErrDeadline) {
		return nil, ErrTimeout
	}
	return payload, err
}

// call sends cmd and waits for its response.
func (t *transport) call(ctx context.Context, cmd byte, args []byte, ackTimeout, timeout time.Duration) ([]byte, error) {
	if err := t.send(cmd, args); err != nil {
		return nil, err
	}
	if err := t.waitAck(ctx, time.Now().Add(ackTimeout)); err != nil {
		return nil, err
	}
	return t.receive(ctx, cmd, time.Now().Add(timeout))
}

// abort cancels a pending command. The PN532 treats a host ACK as abort.
func (t *transport) abort() error {
	return t.conn.Tx(frame.AckFrame, nil)
}
