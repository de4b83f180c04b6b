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

package pool

import (
	"context"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/hostport"
	"github.com/distobj/dobj/internal/transport"
	"github.com/distobj/dobj/internal/wire"
)

// ensureServiceListener lazily binds the service-connection listener the
// first time a name-keyed HostPort is fetched or a caller asks for the
// port explicitly (spec.md §4.4: "a lazily-bound TCP port").
func (p *ChannelPool) ensureServiceListener() (*transport.Listener, error) {
	p.svcMu.Lock()
	defer p.svcMu.Unlock()
	if p.svcListener != nil {
		return p.svcListener, nil
	}

	ln, err := transport.Listen(p.cfg.ServiceConnectionPort, p.logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.svcListener = ln
	p.svcCancel = cancel
	go func() {
		if err := ln.Serve(ctx, p.handleServiceConnection); err != nil {
			p.logger.Warnw("pool: service-connection listener stopped", "error", err)
		}
	}()
	return ln, nil
}

// ServiceConnectionPort returns the reverse-dial listener's bound port,
// binding it first if necessary.
func (p *ChannelPool) ServiceConnectionPort() (hostport.SocketPort, error) {
	ln, err := p.ensureServiceListener()
	if err != nil {
		return hostport.SocketPort{}, err
	}
	return ln.SocketPort(), nil
}

// handleServiceConnection performs the name-registration handshake
// (spec.md §6): the first (and only expected) frame on a freshly accepted
// service-connection socket is the advertised name's raw UTF-8 bytes, not
// an enveloped Request.
func (p *ChannelPool) handleServiceConnection(sock *transport.Socket) {
	ch, err := sock.Upgrade(p.cfg.MaxFramePayload)
	if err != nil {
		p.logger.Debugw("pool: socket already consumed", "error", err)
		return
	}
	payload, err := ch.ReceiveFrame()
	if err != nil {
		p.logger.Warnw("pool: name-registration handshake failed", "error", err)
		ch.Close()
		return
	}

	name := string(payload)
	hp := hostport.ForName(name)
	ch.BindHostPort(hp)
	p.logger.Infow("pool: peer registered under name", "name", name)
	p.registerNamed(hp, ch)
}

// registerNamed hands ch to the oldest waiter for hp's name, if any,
// otherwise deposits it in the idle set for a future Fetch to find
// (spec.md §9: "exactly one wins (FIFO on the waiter queue)").
func (p *ChannelPool) registerNamed(hp hostport.HostPort, ch channel.Channel) {
	p.mu.Lock()
	key := hp.Key()
	waiters := p.waiters[key]
	if len(waiters) > 0 {
		next := waiters[0]
		p.waiters[key] = waiters[1:]
		p.mu.Unlock()
		next <- ch
		return
	}
	p.idle[key] = append(p.idle[key], ch)
	p.reverse[ch] = hp
	p.mu.Unlock()
}

// fetchNamed implements the §4.8 wait-for-registration path: it never
// dials, it waits (with the caller's deadline/DialTimeout) for a peer to
// connect to our service-connection listener and register under hp's
// name.
func (p *ChannelPool) fetchNamed(ctx context.Context, hp hostport.HostPort) (channel.Channel, error) {
	if ch, ok := p.popIdle(hp); ok {
		return ch, nil
	}

	if _, err := p.ensureServiceListener(); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	result := make(chan channel.Channel, 1)
	key := hp.Key()
	p.mu.Lock()
	p.waiters[key] = append(p.waiters[key], result)
	p.mu.Unlock()

	select {
	case ch := <-result:
		return ch, nil
	case <-waitCtx.Done():
		p.removeWaiter(key, result)
		select {
		case ch := <-result:
			return ch, nil
		default:
			return nil, wire.ErrNameUnavailable
		}
	}
}

func (p *ChannelPool) removeWaiter(key string, target chan channel.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.waiters[key]
	for i, w := range list {
		if w == target {
			p.waiters[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
