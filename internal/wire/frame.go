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
	"io"

	"github.com/pkg/errors"
)

const (
	// FrameType is the only frame type this protocol defines; a frame
	// carrying any other value fails validation.
	FrameType uint32 = 1

	// FrameTag guards against a peer that isn't actually speaking this
	// protocol (or a stream desync) writing plausible-looking bytes.
	FrameTag uint32 = 0xC080C080

	// HeaderSize is the three 32-bit big-endian words preceding payload.
	HeaderSize = 12
)

// Frame is the on-wire unit: a validated header plus its payload.
type Frame struct {
	Type        uint32
	Tag         uint32
	PayloadSize uint32
	Payload     []byte
}

// NewFrame builds a well-formed Frame around payload.
func NewFrame(payload []byte) Frame {
	return Frame{Type: FrameType, Tag: FrameTag, PayloadSize: uint32(len(payload)), Payload: payload}
}

// EncodeHeader writes the 12-byte header for payload into buf, which must
// be at least HeaderSize long.
func EncodeHeader(buf []byte, payloadSize uint32) {
	binary.BigEndian.PutUint32(buf[0:4], FrameType)
	binary.BigEndian.PutUint32(buf[4:8], FrameTag)
	binary.BigEndian.PutUint32(buf[8:12], payloadSize)
}

// Encode serializes a Frame to a freshly allocated byte slice. Mainly used
// by tests exercising the header+payload round trip.
func Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	EncodeHeader(buf, uint32(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// DecodeHeader validates and parses a 12-byte header.
func DecodeHeader(buf []byte) (payloadSize uint32, err error) {
	if len(buf) < HeaderSize {
		return 0, errors.Wrap(io.ErrUnexpectedEOF, "wire: short frame header")
	}
	typ := binary.BigEndian.Uint32(buf[0:4])
	tag := binary.BigEndian.Uint32(buf[4:8])
	if typ != FrameType || tag != FrameTag {
		return 0, ErrProtocol
	}
	return binary.BigEndian.Uint32(buf[8:12]), nil
}

// Decode parses a full frame (header+payload) out of buf, requiring an
// exact length match; used by the round-trip tests.
func Decode(buf []byte) (Frame, error) {
	size, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	if len(buf) != HeaderSize+int(size) {
		return Frame{}, errors.Wrap(io.ErrUnexpectedEOF, "wire: frame length mismatch")
	}
	payload := make([]byte, size)
	copy(payload, buf[HeaderSize:])
	return Frame{Type: FrameType, Tag: FrameTag, PayloadSize: size, Payload: payload}, nil
}

// ReadFrame reads one frame from r, rejecting payloads larger than
// maxPayload with ErrFrameTooLarge. A clean io.EOF before any header byte
// is read is returned unwrapped so callers can distinguish a tidy peer
// close from a mid-frame protocol fault.
func ReadFrame(r io.Reader, maxPayload uint32) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrTransport, err.Error())
		}
		return nil, err
	}

	size, err := DecodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if size > maxPayload {
		return nil, ErrFrameTooLarge
	}
	if size == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(ErrTransport, err.Error())
	}
	return payload, nil
}

// WriteFrame writes payload as a single frame to w using two writes
// (header, payload); channel implementations that can vectorise the
// write (see internal/channel) do so instead of calling this directly.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(ErrTransport, err.Error())
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(ErrTransport, err.Error())
		}
	}
	return nil
}
