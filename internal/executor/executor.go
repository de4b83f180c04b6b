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

// Package executor implements the per-execution-context cooperative
// handler that interleaves outbound synchronous calls with inbound
// dispatch (spec.md §4.6). It is the hardest-earned correctness in the
// module: a small cooperative scheduler glued to a blocking RPC call.
package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/queue"
	"github.com/distobj/dobj/internal/wire"
)

// Handler processes one inbound request and returns its response. A
// returned error is wrapped into an Error response (HandlerError);
// a panic is recovered and treated the same way. Neither disturbs the
// originating channel (spec.md §4.6.4).
type Handler func(req wire.Request, svcContext interface{}) (wire.Response, error)

// Executor binds to one SerialQueue and holds the handler registry for
// request kinds it knows how to serve.
type Executor struct {
	q      *SerialQueue
	logger *zap.SugaredLogger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	// current is the innermost active inbound MessageQueue, nil when
	// Idle. SendRequest swaps it in on entry and restores the previous
	// value on exit, which is what makes nested outbound calls during a
	// handler dispatch work: the inner call gets its own fresh queue,
	// and the outer loop's queue reappears once the inner one returns.
	current atomic.Pointer[queue.MessageQueue[*Message]]
}

// New creates an Executor bound to q.
func New(q *SerialQueue, logger *zap.SugaredLogger) *Executor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{q: q, logger: logger, handlers: make(map[string]Handler)}
}

// Queue returns the SerialQueue this Executor is bound to.
func (e *Executor) Queue() *SerialQueue { return e.q }

// RegisterHandler installs the handler for a request kind, replacing any
// previous registration.
func (e *Executor) RegisterHandler(kind string, h Handler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers[kind] = h
}

func (e *Executor) handlerFor(kind string) (Handler, bool) {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	h, ok := e.handlers[kind]
	return h, ok
}

// Receive is the inbound entry point (spec.md §4.6.3), called by every
// channel reader that feeds this Executor's bound context. If the
// Executor is currently looping inside a SendRequest call, the message is
// enqueued to be drained there; otherwise it's dispatched to Q
// asynchronously.
func (e *Executor) Receive(req wire.Request, ch channel.Channel, svcContext interface{}) {
	if cur := e.current.Load(); cur != nil {
		if cur.Enqueue(requestMessage(req, ch, svcContext)) {
			return
		}
		// Lost the race with the loop closing its queue just as we
		// enqueued; fall through and dispatch directly to Q instead.
	}
	e.q.Submit(func() {
		e.dispatchAndReply(requestMessage(req, ch, svcContext))
	})
}

// SendRequest issues a synchronous outbound call on ch and returns its
// response (spec.md §4.6.2). The caller MUST already be running on Q (it
// is "surrendering" Q for the duration of the call); calling this from
// any other goroutine breaks the single-handler-at-a-time invariant.
//
// On any non-nil error return, ch has already been closed by the
// executor (or by the channel itself) and must not be released to the
// pool.
func (e *Executor) SendRequest(ctx context.Context, req wire.Request, ch channel.Channel, svcContext interface{}) (wire.Response, error) {
	inbound := queue.New[*Message]()
	prev := e.current.Swap(inbound)
	defer e.current.Store(prev)

	done := make(chan struct{})
	defer close(done)

	var timedOut atomic.Bool
	go e.watchDeadline(ctx, ch, inbound, done, &timedOut)
	go e.runOutbound(req, ch, inbound, svcContext)

	for {
		msg, ok := inbound.Dequeue()
		if !ok {
			if timedOut.Load() {
				return wire.Response{}, wire.ErrTimeout
			}
			return wire.Response{}, wire.ErrTransport
		}
		if msg.isSentinel {
			if msg.Err != nil {
				ch.Close()
				if timedOut.Load() {
					return wire.Response{}, wire.ErrTimeout
				}
				return wire.Response{}, msg.Err
			}
			return msg.Response, nil
		}
		// Handle directly on Q - we're already here (spec.md §4.6.2 step 3).
		e.dispatchAndReply(msg)
	}
}

// watchDeadline evicts the channel and force-closes inbound if ctx
// expires or is cancelled before the call completes (spec.md §4.6.6).
func (e *Executor) watchDeadline(ctx context.Context, ch channel.Channel, inbound *queue.MessageQueue[*Message], done chan struct{}, timedOut *atomic.Bool) {
	select {
	case <-ctx.Done():
		timedOut.Store(true)
		ch.Close()
		inbound.Close()
	case <-done:
	}
}

// runOutbound writes req to ch, then reads frames from ch until it finds
// the matching response, routing any inbound requests that arrive on the
// same channel in the meantime into inbound (spec.md §4.6.2 step 2).
func (e *Executor) runOutbound(req wire.Request, ch channel.Channel, inbound *queue.MessageQueue[*Message], svcContext interface{}) {
	if err := ch.SendFrame(req.EncodeFrame()); err != nil {
		e.failOutbound(inbound, classifyErr(err))
		return
	}

	for {
		payload, err := ch.ReceiveFrame()
		if err != nil {
			e.failOutbound(inbound, classifyErr(err))
			return
		}

		isResponse, err := wire.PeekClass(payload)
		if err != nil {
			e.failOutbound(inbound, err)
			return
		}

		if isResponse {
			resp, err := wire.DecodeResponseFrame(payload)
			if err != nil {
				e.failOutbound(inbound, err)
				return
			}
			if resp.MessageID != req.MessageID {
				e.logger.Warnw("executor: response for unexpected messageId on lent channel", "want", req.MessageID, "got", resp.MessageID)
				continue
			}
			inbound.Enqueue(responseSentinel(resp))
			inbound.Close()
			return
		}

		inboundReq, err := wire.DecodeRequestFrame(payload)
		if err != nil {
			e.failOutbound(inbound, err)
			return
		}
		if !inbound.Enqueue(requestMessage(inboundReq, ch, svcContext)) {
			return // inbound already closed (deadline fired concurrently)
		}
	}
}

func (e *Executor) failOutbound(inbound *queue.MessageQueue[*Message], err error) {
	inbound.Enqueue(errSentinel(err))
	inbound.Close()
}

// dispatchAndReply resolves msg's handler, sends the response back on the
// originating channel, and never lets a handler failure reach the caller
// of Receive/SendRequest - errors become Error responses instead.
func (e *Executor) dispatchAndReply(msg *Message) {
	resp := e.dispatch(msg.Request, msg.OriginContext)
	if err := msg.OriginChannel.SendFrame(resp.EncodeFrame()); err != nil {
		e.logger.Warnw("executor: failed to send response", "kind", msg.Request.Kind, "error", err)
	}
}

func (e *Executor) dispatch(req wire.Request, svcContext interface{}) (resp wire.Response) {
	h, ok := e.handlerFor(req.Kind)
	if !ok {
		return wire.NewErrorResponse(req, wire.ErrUnsupportedRequest)
	}

	start := time.Now()
	result, err := e.invoke(h, req, svcContext)
	if err != nil {
		resp = wire.NewErrorResponse(req, wire.NewHandlerError(req.Kind, err))
	} else {
		resp = result
	}
	resp.Duration = time.Since(start)
	return resp
}

// invoke recovers a panicking handler into an error; a runaway handler
// that merely blocks keeps blocking Q - nothing here protects against that.
func (e *Executor) invoke(h Handler, req wire.Request, svcContext interface{}) (resp wire.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("handler panic: %v", r)
		}
	}()
	return h(req, svcContext)
}

func classifyErr(err error) error {
	switch {
	case err == io.EOF:
		return wire.ErrTransport
	case errors.Is(err, wire.ErrProtocol):
		return wire.ErrProtocol
	case errors.Is(err, wire.ErrFrameTooLarge):
		return wire.ErrFrameTooLarge
	case errors.Is(err, wire.ErrChannelClosed):
		return wire.ErrChannelClosed
	case errors.Is(err, wire.ErrTransport):
		return err
	default:
		return errors.Wrap(wire.ErrTransport, fmt.Sprint(err))
	}
}
