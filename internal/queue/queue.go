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

// Package queue implements the closable blocking FIFO the executor uses
// to hand inbound messages from background readers to a looping caller
// (spec.md §4.5).
package queue

import "sync"

// MessageQueue is a closable, thread-safe, blocking FIFO. Enqueue never
// blocks; Dequeue blocks iff the queue is open and empty. Multiple
// producers are allowed; the queue is a single-consumer abstraction at
// the point of use.
type MessageQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New returns an open, empty MessageQueue.
func New[T any]() *MessageQueue[T] {
	q := &MessageQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends msg to the tail. Returns false without storing msg if
// the queue has already been closed.
func (q *MessageQueue[T]) Enqueue(msg T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, msg)
	q.cond.Signal()
	return true
}

// Dequeue blocks until an item is available or the queue is closed and
// drained, in which case it returns the zero value and ok=false.
func (q *MessageQueue[T]) Dequeue() (msg T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return msg, false
	}
	msg = q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// Close is idempotent and wakes all blocked consumers, which then drain
// whatever remains before observing empty-and-closed.
func (q *MessageQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (q *MessageQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
