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

// Package wire defines the on-wire frame, envelope and request/response
// types shared by the channel, executor and service layers.
package wire

import "github.com/pkg/errors"

// Sentinel error kinds. Channel-level errors (ProtocolError, FrameTooLarge,
// ChannelClosed, TransportError, Timeout) invalidate the channel they were
// raised on; handler-level errors (UnsupportedRequest, HandlerError) are
// carried inside a Response and never touch the channel.
var (
	ErrProtocol           = errors.New("wire: malformed frame header")
	ErrFrameTooLarge      = errors.New("wire: frame payload exceeds configured cap")
	ErrChannelClosed      = errors.New("wire: channel is closed")
	ErrTransport          = errors.New("wire: transport failure")
	ErrTimeout            = errors.New("wire: request timed out")
	ErrUnsupportedRequest = errors.New("wire: no handler registered for request kind")
	ErrNameUnavailable    = errors.New("wire: name-keyed dial timed out waiting for registration")
)

// HandlerError wraps the error a request handler returned so it can travel
// inside an error Response without being mistaken for a channel fault.
type HandlerError struct {
	Kind string
	Err  error
}

func (e *HandlerError) Error() string {
	return "wire: handler for " + e.Kind + " failed: " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error { return e.Err }

// NewHandlerError wraps err as a HandlerError for the given request kind.
func NewHandlerError(kind string, err error) *HandlerError {
	return &HandlerError{Kind: kind, Err: err}
}
