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

package transport

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/distobj/dobj/internal/hostport"
)

// defaultAcceptWorkers bounds how many accepted sockets can be handed to
// the callback concurrently; more than this many simultaneously-dispatching
// accepts simply queue behind the channel.
const defaultAcceptWorkers = 8

// AcceptFunc is invoked for every accepted connection. Implementations
// that want to keep the connection must call Socket.Upgrade before
// returning; otherwise the dispatch loop drops it once the callback
// returns. Retaining the *Socket without upgrading it does not keep the
// connection open.
type AcceptFunc func(*Socket)

// Listener accepts TCP connections on a port (0 for OS-assigned) and
// dispatches them to a worker pool that invokes an AcceptFunc per
// connection.
type Listener struct {
	ln     net.Listener
	logger *zap.SugaredLogger
}

// Listen binds port (0 ⇒ ephemeral; read back via SocketPort).
func Listen(port uint16, logger *zap.SugaredLogger) (*Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	if err != nil {
		return nil, errors.Wrap(err, "transport: listen")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Listener{ln: ln, logger: logger}, nil
}

// SocketPort reports the bound (ip, port), resolving an ephemeral port.
func (l *Listener) SocketPort() hostport.SocketPort {
	return hostport.FromAddr(l.ln.Addr())
}

// Close stops accepting new connections. Already-accepted connections are
// unaffected.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Serve runs the accept loop plus a fixed worker pool draining it,
// calling fn for each accepted connection, until ctx is cancelled or the
// listener is closed. It mirrors spec.md §4.2's "accepts are dispatched
// to a concurrent worker pool" requirement using an errgroup the way
// internal/pool's caller wires cancellation (rockstar-0000-aistore uses
// the same errgroup.WithContext shape for its accept loops).
func (l *Listener) Serve(ctx context.Context, fn AcceptFunc) error {
	conns := make(chan net.Conn)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(conns)
		for {
			conn, err := l.ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					return errors.Wrap(err, "transport: accept")
				}
			}
			select {
			case conns <- conn:
			case <-ctx.Done():
				conn.Close()
				return nil
			}
		}
	})

	for i := 0; i < defaultAcceptWorkers; i++ {
		g.Go(func() error {
			for {
				select {
				case conn, ok := <-conns:
					if !ok {
						return nil
					}
					sock := newSocket(conn)
					fn(sock)
					sock.Drop()
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	return g.Wait()
}
