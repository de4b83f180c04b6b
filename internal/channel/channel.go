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

// Package channel implements the bidirectional framed message endpoint
// over one stream (spec.md §4.3). A Channel is never safe to read from
// two concurrent readers or written by two concurrent writers; callers
// obtain exclusive use of one through internal/pool's lending discipline.
package channel

import (
	"sync/atomic"

	"github.com/distobj/dobj/internal/hostport"
)

// Channel is a polymorphic framed endpoint. Implementations: tcpChannel
// (loopback TCP socket), deviceChannel (USB-tunnel transport).
type Channel interface {
	// SendFrame writes one frame. Safe to call concurrently with
	// ReceiveFrame but not with another SendFrame (serialised internally
	// by a send mutex regardless).
	SendFrame(payload []byte) error

	// ReceiveFrame blocks for the next frame. Returns io.EOF on a clean
	// peer close; on failure it returns wire.ErrProtocol,
	// wire.ErrFrameTooLarge, a wire.ErrTransport-wrapped short read, or
	// the underlying I/O error unwrapped. The channel is no longer usable
	// after any error.
	ReceiveFrame() ([]byte, error)

	// Close tears down the underlying transport. Idempotent.
	Close() error

	// Closed reports whether Close was called or a terminal I/O error
	// was observed.
	Closed() bool

	// HostPort returns the endpoint this channel is bound to, if any -
	// binding may happen lazily, after a handshake.
	HostPort() (hostport.HostPort, bool)

	// BindHostPort assigns the endpoint once known. Safe to call more
	// than once only to re-assert the same value.
	BindHostPort(hp hostport.HostPort)
}

// hostPortBox lets either channel implementation share the lazy-binding
// logic without duplicating an atomic.Value dance.
type hostPortBox struct {
	v atomic.Value // hostport.HostPort
}

func (b *hostPortBox) HostPort() (hostport.HostPort, bool) {
	v := b.v.Load()
	if v == nil {
		return hostport.HostPort{}, false
	}
	return v.(hostport.HostPort), true
}

func (b *hostPortBox) BindHostPort(hp hostport.HostPort) {
	b.v.Store(hp)
}
