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

// Package hostport defines the address types used to reach a service:
// a local TCP port, a symbolic name, or a (device-serial, port) pair.
package hostport

import "fmt"

// HostPort identifies a reachable endpoint (spec.md §3). It is an
// immutable value type; two HostPorts are equal iff all three fields
// match, and Key returns a comparable string suitable for map lookups.
type HostPort struct {
	port         uint16
	name         string
	deviceSerial string
}

// ForPort builds a HostPort addressed by local TCP port.
func ForPort(port uint16) HostPort {
	return HostPort{port: port}
}

// ForName builds a HostPort addressed by a symbolic name, routed through
// the service-connection listener's reverse-dial handshake.
func ForName(name string) HostPort {
	return HostPort{name: name}
}

// ForDevice builds a HostPort reached through a USB-tunnelled device.
func ForDevice(serial string, port uint16) HostPort {
	return HostPort{port: port, deviceSerial: serial}
}

func (h HostPort) Port() uint16         { return h.port }
func (h HostPort) Name() string         { return h.name }
func (h HostPort) DeviceSerial() string { return h.deviceSerial }

// IsDevice reports whether this HostPort routes through a device tunnel.
func (h HostPort) IsDevice() bool { return h.deviceSerial != "" }

// IsNamed reports whether this HostPort is name-keyed rather than
// port-keyed (spec.md §4.8).
func (h HostPort) IsNamed() bool { return h.port == 0 && h.name != "" }

// Key returns a value comparable with == and usable as a map key; it is
// the canonical identity used by the channel pool's idle-channel maps.
func (h HostPort) Key() string {
	return fmt.Sprintf("%s|%d|%s", h.deviceSerial, h.port, h.name)
}

func (h HostPort) String() string {
	switch {
	case h.IsDevice():
		return fmt.Sprintf("device(%s):%d", h.deviceSerial, h.port)
	case h.IsNamed():
		return fmt.Sprintf("name(%s)", h.name)
	default:
		return fmt.Sprintf("port(%d)", h.port)
	}
}

// Equal reports whether h and other identify the same endpoint.
func (h HostPort) Equal(other HostPort) bool { return h == other }
