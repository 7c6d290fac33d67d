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
	"time"

	"github.com/google/uuid"

	"github.com/ZaparooProject/go-cachelock/clock"
	"github.com/ZaparooProject/go-cachelock/internal/logging"
	"github.com/ZaparooProject/go-cachelock/retained"
)

// BootReport summarizes how a boot established its clock.
type BootReport struct {
	Started  time.Time
	Retained retained.State
	// Source is the validity reason of the clock, empty when still invalid.
	Source string
	ID     uuid.UUID
	Cause  WakeCause
	Valid  bool
}

// Reconcile runs once per boot before the control loop. It always attempts a
// network sync, then falls back to the planned wake instant (timer wakes
// only) and then to the last sync instant. No drift compensation is applied
// to the last sync instant.
func Reconcile(ctx context.Context, src TimeSource, state retained.State, cause WakeCause, logger *logging.Logger) BootReport {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("boot")

	report := BootReport{
		ID:       uuid.New(),
		Cause:    cause,
		Retained: state,
		Started:  time.Now(),
	}
	log := logger.With("boot_id", report.ID.String(), "cause", cause.String())
	log.Info("reconciling clock",
		"planned_wake", state.PlannedWakeEpoch,
		"last_sync", state.LastSyncEpoch)

	if !src.Sync(ctx, BootSyncConnectTimeout, BootSyncTimeout) {
		if cause == WakeTimer && state.PlannedWakeEpoch != 0 {
			src.SetFromInstant(state.PlannedWakeEpoch, clock.ReasonPlannedWake)
		}
		if !src.Valid() && state.LastSyncEpoch != 0 {
			src.SetFromInstant(state.LastSyncEpoch, clock.ReasonLastSync)
		}
	}

	report.Valid = src.Valid()
	report.Source = src.Reason()
	if report.Valid {
		log.Info("clock established", "source", report.Source)
	} else {
		log.Warn("clock unknown, quiet hours disabled until a sync succeeds")
	}
	return report
}
