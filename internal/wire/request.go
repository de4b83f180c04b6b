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
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Known request/response kinds (spec.md §3).
const (
	KindInvocation   = "Invocation"
	KindObjectAlive  = "ObjectAlive"
	KindClassLookup  = "ClassLookup"
	KindRootObject   = "RootObject"
	KindNameRegister = "NameRegister"
	KindError        = "Error"
)

// Request is the tagged message envelope a caller sends. Body is the
// kind-specific payload, already marshalled (see NewRequest).
type Request struct {
	MessageID string
	Kind      string
	// ServiceUUID pins the request to a specific HostService generation;
	// empty means "matches any service listening on the channel" (the
	// default eDistantObject EDOServiceRequest.matchesService: behavior).
	ServiceUUID string
	Body        []byte
}

// Response is the tagged reply; MessageID echoes the originating Request.
type Response struct {
	MessageID string
	Kind      string
	Body      []byte
	Duration  time.Duration
	// ErrMessage is set (Kind == KindError) when the service could not
	// produce a normal response, either because no handler was
	// registered (UnsupportedRequest) or the handler itself failed
	// (HandlerError).
	ErrMessage string
}

// NewRequest marshals body (a kind-specific struct) into a Request.
func NewRequest(id, kind string, body interface{}) (Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Request{}, errors.Wrap(err, "wire: encode request body")
	}
	return Request{MessageID: id, Kind: kind, Body: b}, nil
}

// NewResponse marshals body into a successful Response for req.
func NewResponse(req Request, body interface{}) (Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Response{}, errors.Wrap(err, "wire: encode response body")
	}
	return Response{MessageID: req.MessageID, Kind: req.Kind, Body: b}, nil
}

// NewErrorResponse builds the Error response kind used when a service
// failed to produce a normal one (spec.md §3).
func NewErrorResponse(req Request, err error) Response {
	return Response{MessageID: req.MessageID, Kind: KindError, ErrMessage: err.Error()}
}

// IsError reports whether r is an Error-kind response.
func (r Response) IsError() bool { return r.Kind == KindError }

// AsError returns the carried error, if any.
func (r Response) AsError() error {
	if !r.IsError() {
		return nil
	}
	return errors.New(r.ErrMessage)
}

// Decode unmarshals Body into out.
func (r Request) Decode(out interface{}) error {
	return errors.Wrap(json.Unmarshal(r.Body, out), "wire: decode request body")
}

// Decode unmarshals Body into out.
func (r Response) Decode(out interface{}) error {
	return errors.Wrap(json.Unmarshal(r.Body, out), "wire: decode response body")
}

// Matches reports whether the request targets a service identified by
// serviceUUID. An empty ServiceUUID on the request matches any service
// (EDOServiceRequest's default implementation always returns YES).
func (r Request) Matches(serviceUUID string) bool {
	return r.ServiceUUID == "" || r.ServiceUUID == serviceUUID
}

// EncodeFrame serialises the request into a frame payload.
func (r Request) EncodeFrame() []byte {
	return encodeEnvelope(envelopeHeader{Class: classRequest, Kind: r.Kind, MessageID: r.MessageID, ServiceUUID: r.ServiceUUID}, r.Body)
}

// EncodeFrame serialises the response into a frame payload.
func (r Response) EncodeFrame() []byte {
	body := r.Body
	if r.IsError() {
		body = []byte(r.ErrMessage)
	}
	return encodeEnvelope(envelopeHeader{Class: classResponse, Kind: r.Kind, MessageID: r.MessageID}, body)
}

// DecodeRequestFrame parses a frame payload written by EncodeFrame back
// into a Request. It never fails on a well-formed envelope header even if
// Body doesn't decode to any known kind's struct - that's deferred to the
// handler via Decode.
func DecodeRequestFrame(payload []byte) (Request, error) {
	h, body, err := decodeEnvelope(payload)
	if err != nil {
		return Request{}, err
	}
	if h.Class != classRequest {
		return Request{}, ErrProtocol
	}
	return Request{MessageID: h.MessageID, Kind: h.Kind, ServiceUUID: h.ServiceUUID, Body: body}, nil
}

// DecodeResponseFrame parses a frame payload written by Response.EncodeFrame.
func DecodeResponseFrame(payload []byte) (Response, error) {
	h, body, err := decodeEnvelope(payload)
	if err != nil {
		return Response{}, err
	}
	if h.Class != classResponse {
		return Response{}, ErrProtocol
	}
	resp := Response{MessageID: h.MessageID, Kind: h.Kind}
	if resp.IsError() {
		resp.ErrMessage = string(body)
	} else {
		resp.Body = body
	}
	return resp, nil
}

// PeekMessageID extracts just the messageId from a frame payload without
// touching the body, the capability spec.md §6 requires of the envelope.
func PeekMessageID(payload []byte) (string, error) {
	h, _, err := decodeEnvelope(payload)
	if err != nil {
		return "", err
	}
	return h.MessageID, nil
}
