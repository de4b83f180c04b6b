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

package hostport

import (
	"net"
	"strconv"
)

// SocketPort is a bound socket's observed (ip, port), derived from a live
// socket descriptor rather than constructed directly (spec.md §3).
type SocketPort struct {
	ip   string
	port uint16
}

// FromAddr derives a SocketPort from a net.Addr (typically *net.TCPAddr
// returned by a Listener or Conn).
func FromAddr(addr net.Addr) SocketPort {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return SocketPort{ip: addr.String()}
	}
	port, _ := strconv.Atoi(portStr)
	return SocketPort{ip: host, port: uint16(port)}
}

func (s SocketPort) IP() string    { return s.ip }
func (s SocketPort) Port() uint16  { return s.port }
func (s SocketPort) String() string {
	return net.JoinHostPort(s.ip, strconv.Itoa(int(s.port)))
}
