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
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/distobj/dobj/internal/wire"
)

// DeviceDialer opens a bidirectional byte stream to (serial, port) through
// an external USB-multiplexing daemon. The real usbmux wire protocol is
// out of scope (spec.md §1); this is the seam a host integrating with one
// implements.
type DeviceDialer interface {
	DialDevice(ctx context.Context, serial string, port uint16) (io.ReadWriteCloser, error)
}

// deviceChannel frames an arbitrary io.ReadWriteCloser supplied by a
// DeviceDialer. Framing is identical to the TCP transport - the tunnel is
// transparent to the framing layer (spec.md §6) - so it doesn't attempt
// the vectorised-write optimisation tcpChannel uses, since a tunnel
// stream has no socket to vectorise onto.
type deviceChannel struct {
	stream     io.ReadWriteCloser
	maxPayload uint32

	sendMu sync.Mutex
	closed int32

	hostPortBox
}

// NewDevice wraps a stream obtained from a DeviceDialer as a Channel.
func NewDevice(stream io.ReadWriteCloser, maxPayload uint32) Channel {
	return &deviceChannel{stream: stream, maxPayload: maxPayload}
}

func (c *deviceChannel) SendFrame(payload []byte) error {
	if c.Closed() {
		return wire.ErrChannelClosed
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := wire.WriteFrame(c.stream, payload); err != nil {
		c.fail()
		return err
	}
	return nil
}

func (c *deviceChannel) ReceiveFrame() ([]byte, error) {
	payload, err := wire.ReadFrame(c.stream, c.maxPayload)
	if err != nil {
		if err == io.EOF {
			c.Close()
			return nil, io.EOF
		}
		c.fail()
		return nil, err
	}
	return payload, nil
}

func (c *deviceChannel) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.stream.Close()
}

func (c *deviceChannel) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *deviceChannel) fail() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.stream.Close()
	}
}
