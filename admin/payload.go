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

// Package admin implements the two configuration channels: key=value
// payloads read from admin tags and the line-oriented operator console.
package admin

import (
	"errors"
	"fmt"
	"strings"

	cachelock "github.com/ZaparooProject/go-cachelock"
)

// ErrNotAdminPayload is returned when a text payload is not a key=value list.
var ErrNotAdminPayload = errors.New("not an admin payload")

// Result is the outcome of applying a payload.
type Result struct {
	Applied  []string
	Rejected []*cachelock.KeyError
}

// Summary renders the counts shown on the display.
func (r Result) Summary() string {
	return fmt.Sprintf("applied %d, rejected %d", len(r.Applied), len(r.Rejected))
}

// Err joins the per-key errors, nil when every key applied.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Rejected))
	for _, ke := range r.Rejected {
		errs = append(errs, ke)
	}
	return errors.Join(errs...)
}

// splitItems splits on newline, semicolon and comma.
func splitItems(payload string) []string {
	fields := strings.FieldsFunc(payload, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ';' || r == ','
	})
	items := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			items = append(items, f)
		}
	}
	return items
}

func splitPair(item string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(item, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	for _, r := range key {
		isWord := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isWord {
			return "", "", false
		}
	}
	return key, strings.TrimSpace(value), true
}

// IsAdminPayload reports whether text is a key=value list. Every item must
// be a pair with a plain word as its key, so URLs and free text on ordinary
// tags are not mistaken for configuration.
func IsAdminPayload(text string) bool {
	items := splitItems(text)
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if _, _, ok := splitPair(item); !ok {
			return false
		}
	}
	return true
}

// Apply applies every pair of payload to settings in order. A rejected key
// does not stop the remaining ones.
func Apply(settings *cachelock.Settings, payload string) (Result, error) {
	if !IsAdminPayload(payload) {
		return Result{}, ErrNotAdminPayload
	}
	var res Result
	for _, item := range splitItems(payload) {
		key, value, _ := splitPair(item)
		if err := settings.Set(key, value); err != nil {
			var ke *cachelock.KeyError
			if !errors.As(err, &ke) {
				ke = &cachelock.KeyError{Key: key, Value: value, Err: err}
			}
			res.Rejected = append(res.Rejected, ke)
			continue
		}
		res.Applied = append(res.Applied, strings.ToLower(key))
	}
	return res, nil
}

// ApplyAndSave applies payload and persists the settings once if any key
// was applied.
func ApplyAndSave(settings *cachelock.Settings, store cachelock.SettingsStore, payload string) (Result, error) {
	res, err := Apply(settings, payload)
	if err != nil {
		return res, err
	}
	if len(res.Applied) > 0 {
		if err := store.Save(settings); err != nil {
			return res, fmt.Errorf("persist settings: %w", err)
		}
	}
	return res, nil
}
