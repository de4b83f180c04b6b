package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	q := New[int]()
	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))
	require.True(t, q.Enqueue(3))

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New[string]()
	done := make(chan string, 1)
	go func() {
		msg, ok := q.Dequeue()
		if ok {
			done <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("dequeue returned before anything was enqueued")
	default:
	}

	q.Enqueue("hi")
	select {
	case msg := <-done:
		assert.Equal(t, "hi", msg)
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestCloseIsIdempotentAndWakesConsumers(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Dequeue()
			results <- ok
		}()
	}
	time.Sleep(20 * time.Millisecond)

	q.Close()
	q.Close() // idempotent
	q.Close()

	wg.Wait()
	close(results)
	for ok := range results {
		assert.False(t, ok)
	}
	assert.True(t, q.Closed())
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := New[int]()
	q.Close()
	assert.False(t, q.Enqueue(1))
}

func TestDequeueDrainsBeforeClosedReturnsEmpty(t *testing.T) {
	q := New[int]()
	q.Enqueue(1)
	q.Close()

	got, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}
