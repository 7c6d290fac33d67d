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

//go:build linux

package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/ZaparooProject/go-cachelock/internal/retry"
)

// NetlinkLink brings a network interface up for a sync and back down after.
// Association and addressing are left to the system's network daemons; Up
// only waits for the interface to report an operational state of up.
type NetlinkLink struct {
	Interface    string
	PollInterval time.Duration
}

// Up sets the interface up and polls its operational state until ctx
// expires.
func (l *NetlinkLink) Up(ctx context.Context) error {
	link, err := netlink.LinkByName(l.Interface)
	if err != nil {
		return fmt.Errorf("find link %s: %w", l.Interface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set %s up: %w", l.Interface, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	interval := l.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	err = retry.Until(ctx, deadline, interval, func() (bool, error) {
		current, err := netlink.LinkByName(l.Interface)
		if err != nil {
			return false, fmt.Errorf("poll link %s: %w", l.Interface, err)
		}
		return current.Attrs().OperState == netlink.OperUp, nil
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", l.Interface, err)
	}
	return nil
}

// Down sets the interface down.
func (l *NetlinkLink) Down() error {
	link, err := netlink.LinkByName(l.Interface)
	if err != nil {
		return fmt.Errorf("find link %s: %w", l.Interface, err)
	}
	if err := netlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("set %s down: %w", l.Interface, err)
	}
	return nil
}
