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

// Package transport implements the loopback TCP listen/connect primitives
// (spec.md §4.2): Listener accepts dispatched to a worker pool, and a
// one-shot Socket handle that can be upgraded to exactly one Channel.
package transport

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/hostport"
)

// ErrSocketConsumed is returned by Upgrade when the Socket has already
// been turned into a Channel (or explicitly dropped) once before.
var ErrSocketConsumed = errors.New("transport: socket already upgraded or closed")

// Socket is a one-shot handle around an established net.Conn. It can be
// upgraded to exactly one Channel; after upgrade the descriptor is owned
// by the Channel and reuse is forbidden (spec.md §4.2).
type Socket struct {
	conn      net.Conn
	consumed  int32
	localPort hostport.SocketPort
}

func newSocket(conn net.Conn) *Socket {
	return &Socket{conn: conn, localPort: hostport.FromAddr(conn.LocalAddr())}
}

// SocketPort reports the (ip, port) this socket is bound to.
func (s *Socket) SocketPort() hostport.SocketPort { return s.localPort }

// Upgrade consumes the socket and returns a framed Channel over it. Safe
// to call exactly once; subsequent calls (from any goroutine) fail with
// ErrSocketConsumed.
func (s *Socket) Upgrade(maxPayload uint32) (channel.Channel, error) {
	if !atomic.CompareAndSwapInt32(&s.consumed, 0, 1) {
		return nil, ErrSocketConsumed
	}
	return channel.NewTCP(s.conn, maxPayload), nil
}

// Drop closes the underlying connection without creating a Channel.
// Callers do this explicitly by calling Drop; an accepted Socket that the
// AcceptFunc has not upgraded by the time it returns is dropped by the
// listener's dispatch loop, whether or not the callback kept a reference.
func (s *Socket) Drop() error {
	if !atomic.CompareAndSwapInt32(&s.consumed, 0, 1) {
		return nil
	}
	return s.conn.Close()
}

// Connect dials 127.0.0.1:port with the given timeout.
func Connect(port uint16, timeout time.Duration) (*Socket, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	if err != nil {
		return nil, errors.Wrap(err, "transport: dial")
	}
	return newSocket(conn), nil
}
