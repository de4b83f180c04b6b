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

package executor

import (
	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/wire"
)

// Message is what rides the executor's inbound queue while it loops: an
// inbound request awaiting dispatch, or the sentinel that carries the
// response an in-flight SendRequest is waiting for (spec.md §3, §4.6.2).
type Message struct {
	// Request/OriginChannel/OriginContext are populated for an inbound
	// request that needs handling on Q.
	Request       wire.Request
	OriginChannel channel.Channel
	OriginContext interface{}

	// Response/Err are populated for the sentinel that ends the loop.
	Response   wire.Response
	Err        error
	isSentinel bool
}

func requestMessage(req wire.Request, ch channel.Channel, ctx interface{}) *Message {
	return &Message{Request: req, OriginChannel: ch, OriginContext: ctx}
}

func responseSentinel(resp wire.Response) *Message {
	return &Message{Response: resp, isSentinel: true}
}

func errSentinel(err error) *Message {
	return &Message{Err: err, isSentinel: true}
}
