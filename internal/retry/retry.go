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

// Package retry implements bounded fixed-delay retries and deadline polling.
// Every wait honors its context and an explicit deadline; nothing blocks
// indefinitely.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExhausted is returned when every attempt asked to be retried.
	ErrExhausted = errors.New("retries exhausted")
	// ErrDeadline is returned by Until when the condition never held.
	ErrDeadline = errors.New("deadline reached")
)

// Operation is one attempt. Returning shouldRetry=true with a nil error asks
// for another attempt; a non-nil error aborts immediately.
type Operation[T any] func(attempt int) (result T, shouldRetry bool, err error)

// Config controls WithRetry.
type Config struct {
	// OnRetry runs between attempts, e.g. to reset a peripheral.
	OnRetry     func(attempt int) error
	Description string
	MaxAttempts int
	Delay       time.Duration
}

// WithRetry runs operation up to MaxAttempts times with a fixed delay
// between attempts.
func WithRetry[T any](ctx context.Context, config Config, operation Operation[T]) (T, error) {
	var zero T
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, shouldRetry, err := operation(attempt)
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt == attempts {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(attempt); err != nil {
				return zero, err
			}
		}
		if err := Sleep(ctx, config.Delay); err != nil {
			return zero, err
		}
	}

	if config.Description != "" {
		return zero, fmt.Errorf("%s: %w after %d attempts", config.Description, ErrExhausted, attempts)
	}
	return zero, fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
}

// Do retries an error-returning function; every error is retried.
func Do(ctx context.Context, config Config, fn func(attempt int) error) error {
	var lastErr error
	_, err := WithRetry(ctx, config, func(attempt int) (struct{}, bool, error) {
		lastErr = fn(attempt)
		return struct{}{}, lastErr != nil, nil
	})
	if err != nil && lastErr != nil {
		return fmt.Errorf("%w: %w", err, lastErr)
	}
	return err
}

// Until polls cond every interval until it reports true, the deadline
// passes, or ctx is done.
func Until(ctx context.Context, deadline time.Time, interval time.Duration, cond func() (bool, error)) error {
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Add(interval).Before(deadline) {
			return ErrDeadline
		}
		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
