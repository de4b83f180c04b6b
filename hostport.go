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

package dobj

import "github.com/distobj/dobj/internal/hostport"

// HostPort identifies a reachable endpoint: a local TCP port, a symbolic
// name routed through the reverse-dial listener, or a (device-serial,
// port) pair (spec.md §3).
type HostPort = hostport.HostPort

// ForPort builds a HostPort addressed by local TCP port.
func ForPort(port uint16) HostPort { return hostport.ForPort(port) }

// ForName builds a HostPort addressed by a symbolic name; fetching it
// blocks until a peer dials our service-connection listener and registers
// under that name (spec.md §4.8).
func ForName(name string) HostPort { return hostport.ForName(name) }

// ForDevice builds a HostPort reached through a USB-tunnelled device.
func ForDevice(serial string, port uint16) HostPort { return hostport.ForDevice(serial, port) }
