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

package channel

import (
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sagernet/sing/common/bufio"

	"github.com/distobj/dobj/internal/wire"
)

// tcpChannel frames a net.Conn. Writes are serialised by sendMu so that
// two goroutines issuing SendFrame concurrently still produce a
// well-ordered byte stream for the peer (spec.md §4.3).
type tcpChannel struct {
	conn       net.Conn
	maxPayload uint32

	sendMu sync.Mutex
	// vecWriter/vectored support scatter-gather (header, payload) writes the way the
	// teacher's Session.sendLoop does, falling back to a single copy+write
	// when the underlying conn doesn't support vectorised I/O.
	vecWriter io.Writer
	vectored  bool

	closed   int32
	closeErr error

	hostPortBox
}

// NewTCP wraps an already-established net.Conn as a Channel.
func NewTCP(conn net.Conn, maxPayload uint32) Channel {
	c := &tcpChannel{conn: conn, maxPayload: maxPayload}
	if bw, ok := bufio.CreateVectorisedWriter(conn); ok {
		c.vecWriter = bw
		c.vectored = true
	}
	return c
}

func (c *tcpChannel) SendFrame(payload []byte) error {
	if c.Closed() {
		return wire.ErrChannelClosed
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	var hdr [wire.HeaderSize]byte
	wire.EncodeHeader(hdr[:], uint32(len(payload)))

	var err error
	if c.vectored {
		_, err = bufio.WriteVectorised(c.vecWriter, [][]byte{hdr[:], payload})
	} else {
		buf := make([]byte, wire.HeaderSize+len(payload))
		copy(buf, hdr[:])
		copy(buf[wire.HeaderSize:], payload)
		_, err = c.conn.Write(buf)
	}
	if err != nil {
		c.fail(err)
		return wrapTransport(err)
	}
	return nil
}

func (c *tcpChannel) ReceiveFrame() ([]byte, error) {
	payload, err := wire.ReadFrame(c.conn, c.maxPayload)
	if err != nil {
		if err == io.EOF {
			c.Close()
			return nil, io.EOF
		}
		c.fail(err)
		return nil, err
	}
	return payload, nil
}

func (c *tcpChannel) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.conn.Close()
}

func (c *tcpChannel) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Err returns the error that caused the channel to fail, if any.
func (c *tcpChannel) Err() error {
	return c.closeErr
}

func (c *tcpChannel) fail(err error) {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.closeErr = err
		c.conn.Close()
	}
}

func wrapTransport(err error) error {
	if err == io.EOF {
		return io.EOF
	}
	return &transportError{cause: err}
}

// transportError wraps an underlying I/O error as wire.ErrTransport while
// keeping Unwrap so errors.Is(err, wire.ErrTransport) still works.
type transportError struct{ cause error }

func (e *transportError) Error() string { return "channel: " + e.cause.Error() }
func (e *transportError) Unwrap() error { return wire.ErrTransport }
