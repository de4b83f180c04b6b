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

// SerialQueue models the "serial cooperative context Q" (spec.md §5): a
// single-worker FIFO that the host process runs its own local logic on.
// An Executor binds to exactly one SerialQueue.
type SerialQueue struct {
	tasks chan func()
}

// NewSerialQueue starts the worker goroutine and returns the queue.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{tasks: make(chan func())}
	go q.run()
	return q
}

func (q *SerialQueue) run() {
	for fn := range q.tasks {
		fn()
	}
}

// Submit enqueues fn to run on Q, blocking until a prior task (if any) has
// finished and the worker is ready to accept it. Do not call Submit from
// a task already running on this same Q - that would deadlock, which is
// exactly why Executor.SendRequest never calls Submit itself; it runs
// handlers inline once it already has the floor (spec.md §4.6.2 step 3).
func (q *SerialQueue) Submit(fn func()) {
	q.tasks <- fn
}

// Close stops the worker. No further Submit calls may be made.
func (q *SerialQueue) Close() {
	close(q.tasks)
}
