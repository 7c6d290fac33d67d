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

/*
Package cachelock holds the shared model of an NFC-gated geocache controller.

The controller unlocks a container for visitors carrying an authorized NFC
tag, shows a welcome screen followed by the unlock code, and spends most of
its life in deep sleep to stretch a battery over weeks in the field.

Features:
  - Allow list of tag UIDs with a default-allow policy while the list is empty
  - Quiet hours: a daily window in which the device sleeps until a fixed hour
  - Daytime sleep woken by the NFC controller's own autonomous polling
  - Two configuration channels: a serial console and admin tags carrying
    key=value text
  - Time reconciliation across sleeps when network time sync fails

Package layout:

  - cachelock (this package): Settings, QuietWindow, AllowSet, Frame and the
    collaborator interfaces (NFC, Display, SettingsStore)
  - clock: time source with validity tracking and network sync
  - retained: the two values that survive a suspend
  - power: sleep policy engine and boot reconciliation
  - interaction: tag-driven mode state machine
  - admin: admin payloads and the operator console
  - store: SQLite settings persistence
  - nfc: PN532 collaborator over I2C
  - display: SSD1306 collaborator
  - controller: the cooperative control loop

Quiet hours:

	w := cachelock.QuietWindow{Enabled: true, StartHour: 22, EndHour: 7}
	cachelock.IsQuietHour(23, w) // true
	cachelock.IsQuietHour(12, w) // false

A window whose start and end hours are equal is always quiet. Operators use
it to park a device in night mode for storage or shipping.

Thread Safety:

Nothing in this package is safe for concurrent use. The controller runs a
single cooperative loop that owns every value.
*/
package cachelock
