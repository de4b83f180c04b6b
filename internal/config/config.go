// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config holds the options table from spec.md §6, shared by the
// pool, executor and service layers without creating an import cycle
// back to the root package.
package config

import (
	"time"

	"github.com/pkg/errors"
)

// Config is the runtime's tunable surface (spec.md §6). There are no
// environment variables and no persisted state - a Config is just a
// value the host process builds in code, mirroring the teacher's
// smux.Config.
type Config struct {
	// ServicePort is the TCP port a HostService listens on; 0 picks an
	// ephemeral port.
	ServicePort uint16

	// ServiceConnectionPort is the reverse-dial listener's port; 0 picks
	// an ephemeral port, queryable after bind.
	ServiceConnectionPort uint16

	// DialTimeout bounds how long ChannelPool.Fetch waits on a connect
	// or a name registration.
	DialTimeout time.Duration

	// RequestTimeout bounds how long Executor.SendRequest waits for a
	// response.
	RequestTimeout time.Duration

	// MaxFramePayload hard-caps a decoded frame's payload size.
	MaxFramePayload uint32

	// MaxIdleChannelsPerPort caps the pool's idle set per HostPort;
	// channels released beyond the cap are closed instead of pooled.
	MaxIdleChannelsPerPort int

	// DialBackoffRate and DialBackoffBurst configure the per-HostPort
	// rate limiter guarding against dial storms against a port that is
	// currently refusing connections (an enrichment over the
	// distillation - see SPEC_FULL.md §6).
	DialBackoffRate  float64
	DialBackoffBurst int
}

// Default returns sensible defaults for all options.
func Default() Config {
	return Config{
		DialTimeout:            5 * time.Second,
		RequestTimeout:         30 * time.Second,
		MaxFramePayload:        4 << 20, // 4 MiB
		MaxIdleChannelsPerPort: 8,
		DialBackoffRate:        5,
		DialBackoffBurst:       5,
	}
}

// Verify catches zero/negative misconfiguration before it reaches a
// running pool or executor.
func (c Config) Verify() error {
	if c.DialTimeout <= 0 {
		return errors.New("config: DialTimeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: RequestTimeout must be positive")
	}
	if c.MaxFramePayload == 0 {
		return errors.New("config: MaxFramePayload must be positive")
	}
	if c.MaxIdleChannelsPerPort < 0 {
		return errors.New("config: MaxIdleChannelsPerPort must not be negative")
	}
	if c.DialBackoffRate <= 0 {
		return errors.New("config: DialBackoffRate must be positive")
	}
	if c.DialBackoffBurst <= 0 {
		return errors.New("config: DialBackoffBurst must be positive")
	}
	return nil
}
