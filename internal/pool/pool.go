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

// Package pool implements the reusable idle-channel cache keyed by
// HostPort, plus the reverse-direction service-connection listener
// (spec.md §4.4, §4.8).
package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/config"
	"github.com/distobj/dobj/internal/hostport"
	"github.com/distobj/dobj/internal/transport"
)

// ChannelPool caches idle Channels by HostPort and lends them out
// exclusively. A Channel is either idle (in the pool, nobody
// reading/writing) or lent out; the pool never reads or writes a lent
// channel itself.
type ChannelPool struct {
	cfg    config.Config
	logger *zap.SugaredLogger

	mu      sync.Mutex
	idle    map[string][]channel.Channel
	reverse map[channel.Channel]hostport.HostPort
	waiters map[string][]chan channel.Channel // FIFO per name (spec.md §9 open question)

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	deviceDialer channel.DeviceDialer

	svcMu       sync.Mutex
	svcListener *transport.Listener
	svcCancel   context.CancelFunc
}

// New builds a ChannelPool. deviceDialer may be nil if the process never
// fetches device-routed HostPorts.
func New(cfg config.Config, deviceDialer channel.DeviceDialer, logger *zap.SugaredLogger) *ChannelPool {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ChannelPool{
		cfg:          cfg,
		logger:       logger,
		idle:         make(map[string][]channel.Channel),
		reverse:      make(map[channel.Channel]hostport.HostPort),
		waiters:      make(map[string][]chan channel.Channel),
		limiters:     make(map[string]*rate.Limiter),
		deviceDialer: deviceDialer,
	}
}

// Fetch returns an idle channel for hp if one exists, otherwise dials
// (or, for a name-keyed HostPort, waits for a reverse registration). The
// returned channel is owned exclusively by the caller until Release.
func (p *ChannelPool) Fetch(ctx context.Context, hp hostport.HostPort) (channel.Channel, error) {
	if hp.IsNamed() {
		return p.fetchNamed(ctx, hp)
	}

	if ch, ok := p.popIdle(hp); ok {
		p.logger.Debugw("pool: reused idle channel", "hostPort", hp.String())
		return ch, nil
	}

	if err := p.awaitDialSlot(ctx, hp); err != nil {
		return nil, err
	}

	ch, err := p.dial(ctx, hp)
	if err != nil {
		p.logger.Warnw("pool: dial failed", "hostPort", hp.String(), "error", err)
		return nil, err
	}
	ch.BindHostPort(hp)
	return ch, nil
}

func (p *ChannelPool) popIdle(hp hostport.HostPort) (channel.Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.idle[hp.Key()]
	if len(list) == 0 {
		return nil, false
	}
	// Most-recently-released one is at the tail.
	ch := list[len(list)-1]
	p.idle[hp.Key()] = list[:len(list)-1]
	delete(p.reverse, ch)
	return ch, true
}

// dial implements the §4.4 dialing policy for port- and device-addressed
// HostPorts (name-addressed ones never reach here, see fetchNamed).
func (p *ChannelPool) dial(ctx context.Context, hp hostport.HostPort) (channel.Channel, error) {
	switch {
	case hp.IsDevice():
		stream, err := p.deviceDialer.DialDevice(ctx, hp.DeviceSerial(), hp.Port())
		if err != nil {
			return nil, err
		}
		return channel.NewDevice(stream, p.cfg.MaxFramePayload), nil

	default: // hp.Port() != 0
		sock, err := transport.Connect(hp.Port(), p.cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		return sock.Upgrade(p.cfg.MaxFramePayload)
	}
}

// awaitDialSlot rate-limits repeated dial attempts to a single HostPort so
// a port that is currently refusing connections doesn't get hammered
// (SPEC_FULL.md §6 domain-stack enrichment over the distillation).
func (p *ChannelPool) awaitDialSlot(ctx context.Context, hp hostport.HostPort) error {
	lim := p.limiterFor(hp)
	return lim.Wait(ctx)
}

func (p *ChannelPool) limiterFor(hp hostport.HostPort) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()
	lim, ok := p.limiters[hp.Key()]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.cfg.DialBackoffRate), p.cfg.DialBackoffBurst)
		p.limiters[hp.Key()] = lim
	}
	return lim
}

// Release returns a still-healthy channel to the idle set. A channel
// that reported any transport error must not be released (the caller is
// expected to have already dropped it).
func (p *ChannelPool) Release(ch channel.Channel) {
	if ch.Closed() {
		return
	}
	hp, ok := ch.HostPort()
	if !ok {
		ch.Close()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.idle[hp.Key()]
	if p.cfg.MaxIdleChannelsPerPort > 0 && len(list) >= p.cfg.MaxIdleChannelsPerPort {
		p.mu.Unlock()
		ch.Close()
		p.mu.Lock()
		return
	}
	p.idle[hp.Key()] = append(list, ch)
	p.reverse[ch] = hp
}

// RemoveAll closes and drops every idle channel for hp; used when the
// remote service is known invalid.
func (p *ChannelPool) RemoveAll(hp hostport.HostPort) {
	p.mu.Lock()
	list := p.idle[hp.Key()]
	delete(p.idle, hp.Key())
	for _, ch := range list {
		delete(p.reverse, ch)
	}
	p.mu.Unlock()
	for _, ch := range list {
		ch.Close()
	}
}

// Count reports the number of idle channels cached for hp.
func (p *ChannelPool) Count(hp hostport.HostPort) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[hp.Key()])
}

// Close tears down the service-connection listener, if one was started,
// and closes every idle channel.
func (p *ChannelPool) Close() error {
	p.svcMu.Lock()
	if p.svcCancel != nil {
		p.svcCancel()
	}
	ln := p.svcListener
	p.svcListener = nil
	p.svcMu.Unlock()
	if ln != nil {
		ln.Close()
	}

	p.mu.Lock()
	all := p.idle
	p.idle = make(map[string][]channel.Channel)
	p.reverse = make(map[channel.Channel]hostport.HostPort)
	p.mu.Unlock()
	for _, list := range all {
		for _, ch := range list {
			ch.Close()
		}
	}
	return nil
}
