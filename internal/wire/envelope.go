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

package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// classRequest/classResponse distinguish a Request envelope from a
// Response envelope on the wire; without it a reader draining a channel
// for both directions at once (internal/executor's nested-call loop)
// couldn't tell which to decode as.
const (
	classRequest  byte = 0
	classResponse byte = 1
)

// envelopeHeader is the small fixed header prepended to every frame
// payload so that the class, kind, messageId and (optional) target-service
// identity can be read without deserialising the opaque body. The body
// itself is left to the caller (see Request/Response) since the spec
// treats invocation arguments as an opaque blob produced by the host
// marshaller.
//
//	|-1B class-|-2B kindLen-|-kind-|-2B idLen-|-messageId-|-2B svcLen-|-serviceUUID-|-body-|
type envelopeHeader struct {
	Class       byte
	Kind        string
	MessageID   string
	ServiceUUID string
}

func encodeEnvelope(h envelopeHeader, body []byte) []byte {
	size := 1 + 2 + len(h.Kind) + 2 + len(h.MessageID) + 2 + len(h.ServiceUUID) + len(body)
	buf := make([]byte, size)
	buf[0] = h.Class
	off := 1
	off = putField(buf, off, h.Kind)
	off = putField(buf, off, h.MessageID)
	off = putField(buf, off, h.ServiceUUID)
	copy(buf[off:], body)
	return buf
}

func putField(buf []byte, off int, s string) int {
	binary.BigEndian.PutUint16(buf[off:], uint16(len(s)))
	off += 2
	copy(buf[off:], s)
	return off + len(s)
}

func getField(buf []byte, off int) (string, int, error) {
	if off+2 > len(buf) {
		return "", 0, errors.Wrap(ErrProtocol, "envelope: truncated field length")
	}
	n := int(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	if off+n > len(buf) {
		return "", 0, errors.Wrap(ErrProtocol, "envelope: truncated field value")
	}
	return string(buf[off : off+n]), off + n, nil
}

func decodeEnvelope(payload []byte) (envelopeHeader, []byte, error) {
	var h envelopeHeader
	if len(payload) < 1 {
		return h, nil, errors.Wrap(ErrProtocol, "envelope: empty payload")
	}
	h.Class = payload[0]
	off := 1
	var err error
	if h.Kind, off, err = getField(payload, off); err != nil {
		return h, nil, err
	}
	if h.MessageID, off, err = getField(payload, off); err != nil {
		return h, nil, err
	}
	if h.ServiceUUID, off, err = getField(payload, off); err != nil {
		return h, nil, err
	}
	return h, payload[off:], nil
}

// PeekClass reports whether payload encodes a Response (true) or a
// Request (false) envelope, without decoding the body.
func PeekClass(payload []byte) (isResponse bool, err error) {
	if len(payload) < 1 {
		return false, errors.Wrap(ErrProtocol, "envelope: empty payload")
	}
	return payload[0] == classResponse, nil
}
