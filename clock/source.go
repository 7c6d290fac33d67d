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

package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-cachelock/internal/logging"
)

// Reasons recorded when validity is established.
const (
	ReasonNetwork     = "network"
	ReasonPlannedWake = "planned-wake"
	ReasonLastSync    = "last-sync"
	ReasonManual      = "manual"
)

// DefaultTimeHost is the time authority queried when none is configured.
const DefaultTimeHost = "pool.ntp.org"

// SyncRecorder persists the instant of each successful network sync.
type SyncRecorder interface {
	RecordSync(t time.Time) error
}

// Source owns the wall clock and whether it can be trusted.
type Source struct {
	wall     Wall
	link     Link
	resolver Resolver
	querier  Querier
	recorder SyncRecorder
	logger   *logging.Logger
	loc      *time.Location
	lastSync time.Time
	host     string
	reason   string
	servers  []string
	mu       sync.RWMutex
	valid    bool
}

// Option configures a Source.
type Option func(*Source)

// WithLink sets the transient network link used during Sync.
func WithLink(link Link) Option {
	return func(s *Source) { s.link = link }
}

// WithResolver replaces the DNS resolver.
func WithResolver(r Resolver) Option {
	return func(s *Source) { s.resolver = r }
}

// WithQuerier replaces the NTP querier.
func WithQuerier(q Querier) Option {
	return func(s *Source) { s.querier = q }
}

// WithRecorder sets where successful syncs are recorded.
func WithRecorder(r SyncRecorder) Option {
	return func(s *Source) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithTimeAuthority sets the hostname to resolve and extra static servers
// tried after the resolved addresses.
func WithTimeAuthority(host string, servers ...string) Option {
	return func(s *Source) {
		s.host = host
		s.servers = append([]string(nil), servers...)
	}
}

// WithLocation sets the initial timezone.
func WithLocation(loc *time.Location) Option {
	return func(s *Source) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewSource creates an invalid Source over wall.
func NewSource(wall Wall, opts ...Option) *Source {
	s := &Source{
		wall:     wall,
		link:     NopLink{},
		resolver: &DNSResolver{},
		querier:  &NTPQuerier{},
		logger:   logging.Default(),
		loc:      time.UTC,
		host:     DefaultTimeHost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("clock")
	return s
}

// Valid reports whether the wall clock has been established this boot.
func (s *Source) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

// Reason reports how validity was established, empty while invalid.
func (s *Source) Reason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// LastSync returns the instant of the last successful network sync this
// boot, zero if none.
func (s *Source) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Now returns the raw wall clock reading regardless of validity.
func (s *Source) Now() time.Time {
	return s.wall.Now()
}

// LocalTime returns the wall clock in the configured timezone. The bool is
// false while the clock is invalid and the time must not be used.
func (s *Source) LocalTime() (time.Time, bool) {
	s.mu.RLock()
	loc, valid := s.loc, s.valid
	s.mu.RUnlock()
	return s.wall.Now().In(loc), valid
}

// Location returns the configured timezone.
func (s *Source) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

// SetLocation changes the timezone.
func (s *Source) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()
}

// SetTimezone loads an IANA timezone by name and applies it.
func (s *Source) SetTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}
	s.SetLocation(loc)
	return nil
}

// SetFromInstant sets the wall clock to a previously known instant. Epochs
// that are not positive carry no information and leave the clock untouched.
func (s *Source) SetFromInstant(epoch int64, reason string) bool {
	if epoch <= 0 {
		s.logger.Debug("ignoring empty instant", "reason", reason)
		return false
	}
	t := time.Unix(epoch, 0)
	if err := s.wall.Set(t); err != nil {
		s.logger.Warn("failed to set wall clock", "reason", reason, "error", err)
		return false
	}
	s.markValid(reason)
	s.logger.Info("clock set from instant", "reason", reason, "time", t.UTC().Format(time.RFC3339))
	return true
}

// Sync brings the link up, queries the time authority and sets the wall
// clock. connectTimeout bounds link bring-up and syncTimeout bounds the
// queries. The link is always taken down again. A failed sync leaves
// validity as it was.
func (s *Source) Sync(ctx context.Context, connectTimeout, syncTimeout time.Duration) bool {
	defer func() {
		if err := s.link.Down(); err != nil {
			s.logger.Debug("link down failed", "error", err)
		}
	}()

	upCtx, cancelUp := context.WithTimeout(ctx, connectTimeout)
	err := s.link.Up(upCtx)
	cancelUp()
	if err != nil {
		s.logger.Warn("time sync link unavailable", "error", err)
		return false
	}

	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	endpoints := s.endpoints(syncCtx)
	if len(endpoints) == 0 {
		s.logger.Warn("time sync failed", "error", ErrNoEndpoints)
		return false
	}

	for _, endpoint := range endpoints {
		if syncCtx.Err() != nil {
			break
		}
		now, err := s.querier.Query(syncCtx, endpoint)
		if err != nil {
			s.logger.Debug("time query failed", "endpoint", endpoint, "error", err)
			continue
		}
		if err := s.wall.Set(now); err != nil {
			s.logger.Warn("failed to set wall clock", "error", err)
			return false
		}
		s.mu.Lock()
		s.lastSync = now
		s.mu.Unlock()
		s.markValid(ReasonNetwork)
		if s.recorder != nil {
			if err := s.recorder.RecordSync(now); err != nil {
				s.logger.Warn("failed to record sync", "error", err)
			}
		}
		s.logger.Info("time synced", "endpoint", endpoint, "time", now.UTC().Format(time.RFC3339))
		return true
	}

	s.logger.Warn("time sync failed", "endpoints", len(endpoints))
	return false
}

func (s *Source) endpoints(ctx context.Context) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(e string) {
		if e != "" && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}

	if s.host != "" {
		addrs, err := s.resolver.Resolve(ctx, s.host)
		if err != nil {
			s.logger.Debug("resolve failed, querying by name", "host", s.host, "error", err)
			add(s.host)
		}
		for _, a := range addrs {
			add(a)
		}
	}
	for _, server := range s.servers {
		add(server)
	}
	return out
}

func (s *Source) markValid(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = true
	s.reason = reason
}
