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
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/beevik/ntp"
	"github.com/miekg/dns"
)

// Clock errors
var (
	ErrUnsupported = errors.New("not supported on this platform")
	ErrNoEndpoints = errors.New("no time authority endpoints")
	ErrNoAnswer    = errors.New("no address records")
)

// Link is the transient network connection used only for time sync.
type Link interface {
	// Up brings the link up and waits until it carries traffic or ctx
	// expires.
	Up(ctx context.Context) error
	// Down takes the link down. It must be safe to call when already down.
	Down() error
}

// NopLink is used when networking is managed elsewhere.
type NopLink struct{}

// Up does nothing.
func (NopLink) Up(context.Context) error { return nil }

// Down does nothing.
func (NopLink) Down() error { return nil }

// Resolver turns a time-authority hostname into endpoint addresses.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]string, error)
}

// Querier asks one endpoint for the current time.
type Querier interface {
	Query(ctx context.Context, endpoint string) (time.Time, error)
}

// DNSResolver queries A records directly from the configured name servers.
type DNSResolver struct {
	// ConfigPath is the resolv.conf to read servers from. It is read on each
	// call because the link may have just been brought up.
	ConfigPath string
	// Servers overrides ConfigPath when set ("host:port").
	Servers []string
	Timeout time.Duration
}

// DefaultResolvConf is the system resolver configuration.
const DefaultResolvConf = "/etc/resolv.conf"

// Resolve returns the IPv4 addresses for host. IP literals are returned
// unchanged.
func (r *DNSResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}

	servers, err := r.servers()
	if err != nil {
		return nil, err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := &dns.Client{Timeout: timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range servers {
		in, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		var addrs []string
		for _, rr := range in.Answer {
			if a, ok := rr.(*dns.A); ok {
				addrs = append(addrs, a.A.String())
			}
		}
		if len(addrs) == 0 {
			lastErr = fmt.Errorf("%w for %s", ErrNoAnswer, host)
			continue
		}
		return addrs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w for %s", ErrNoAnswer, host)
	}
	return nil, fmt.Errorf("resolve %s: %w", host, lastErr)
}

func (r *DNSResolver) servers() ([]string, error) {
	if len(r.Servers) > 0 {
		return r.Servers, nil
	}
	path := r.ConfigPath
	if path == "" {
		path = DefaultResolvConf
	}
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resolver config: %w", err)
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers, nil
}

// NTPQuerier queries SNTP endpoints.
type NTPQuerier struct {
	// MaxTimeout caps a single query; the context deadline may shorten it.
	MaxTimeout time.Duration
}

// Query returns the endpoint's view of the current instant.
func (q *NTPQuerier) Query(ctx context.Context, endpoint string) (time.Time, error) {
	timeout := q.MaxTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Time{}, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	resp, err := ntp.QueryWithOptions(endpoint, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, fmt.Errorf("ntp query %s: %w", endpoint, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("ntp response from %s: %w", endpoint, err)
	}
	return time.Now().Add(resp.ClockOffset), nil
}
