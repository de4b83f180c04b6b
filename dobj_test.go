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

package dobj

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distobj/dobj/internal/wire"
)

// TestRootObjectRoundTripAcrossRuntimes exercises the end-to-end path two
// separate processes would take: A hosts a root object, B fetches it by
// port and releases the channel back to its pool.
func TestRootObjectRoundTripAcrossRuntimes(t *testing.T) {
	cfgA := DefaultConfig()
	rtA, err := New(cfgA, nil, nil)
	require.NoError(t, err)
	defer rtA.Close()

	hs, err := rtA.Host("the-root-object", nil, nil)
	require.NoError(t, err)

	cfgB := DefaultConfig()
	rtB, err := New(cfgB, nil, nil)
	require.NoError(t, err)
	defer rtB.Close()

	hp := ForPort(hs.SocketPort().Port())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr, err := rtB.Client().RootObject(ctx, hp, hs.UUID())
	require.NoError(t, err)
	assert.Equal(t, hs.RootAddress(), addr)

	alive, err := rtB.Client().ObjectAlive(ctx, hp, hs.UUID(), addr)
	require.NoError(t, err)
	assert.True(t, alive)

	assert.Equal(t, 1, rtB.Pool().Count(hp))
}

func TestHostInvalidateStopsServingFurtherCalls(t *testing.T) {
	rtA, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtA.Close()

	hs, err := rtA.Host("root", nil, nil)
	require.NoError(t, err)

	rtB, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtB.Close()

	hp := ForPort(hs.SocketPort().Port())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = rtB.Client().RootObject(ctx, hp, hs.UUID())
	require.NoError(t, err)

	require.NoError(t, hs.Invalidate())

	_, ok := hs.Lookup(hs.RootAddress())
	assert.False(t, ok)
}

// TestHostServicesRunConcurrently exercises spec.md §5's "parallelism
// across services, strict serialisation within one" guarantee: a slow
// handler on one HostService must not stall a concurrent call into a
// different HostService hosted by the same Runtime. Each side calling in
// is its own Runtime (and so its own ClientService/Executor) precisely so
// that ClientService's own call serialisation - a deliberate, separate
// tradeoff (see internal/service/clientservice.go) - can't be mistaken
// for host-side stalling.
func TestHostServicesRunConcurrently(t *testing.T) {
	rtA, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtA.Close()

	slow := func(target interface{}, req wire.InvocationRequest) (wire.InvocationResponse, error) {
		time.Sleep(300 * time.Millisecond)
		return wire.InvocationResponse{}, nil
	}
	fast := func(target interface{}, req wire.InvocationRequest) (wire.InvocationResponse, error) {
		return wire.InvocationResponse{}, nil
	}

	slowHost, err := rtA.Host("slow-root", slow, nil)
	require.NoError(t, err)
	fastHost, err := rtA.Host("fast-root", fast, nil)
	require.NoError(t, err)

	rtSlowCaller, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtSlowCaller.Close()
	rtFastCaller, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtFastCaller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slowHP := ForPort(slowHost.SocketPort().Port())
	fastHP := ForPort(fastHost.SocketPort().Port())

	var wg sync.WaitGroup
	wg.Add(2)
	start := time.Now()
	var fastElapsed time.Duration

	go func() {
		defer wg.Done()
		_, err := rtSlowCaller.Client().Invoke(ctx, slowHP, slowHost.UUID(), slowHost.RootAddress(), "slow", nil)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond) // let the slow call start first
		callStart := time.Now()
		_, err := rtFastCaller.Client().Invoke(ctx, fastHP, fastHost.UUID(), fastHost.RootAddress(), "fast", nil)
		assert.NoError(t, err)
		fastElapsed = time.Since(callStart)
	}()
	wg.Wait()

	assert.Less(t, time.Since(start), 600*time.Millisecond)
	assert.Less(t, fastElapsed, 200*time.Millisecond)
}

// TestClientServiceConcurrentCallsAreSerializedSafely drives many
// goroutines through the same process-wide ClientService at once; none of
// them may observe an error, and every call must still resolve to the
// correct root address.
func TestClientServiceConcurrentCallsAreSerializedSafely(t *testing.T) {
	rtA, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtA.Close()

	hs, err := rtA.Host("root", nil, nil)
	require.NoError(t, err)

	rtB, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer rtB.Close()

	hp := ForPort(hs.SocketPort().Port())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stay under the pool's default per-port dial-backoff burst so every
	// goroutine's Fetch dials immediately instead of queueing on the
	// limiter; this test is about ClientService concurrency, not dial
	// pacing (see internal/pool/pool.go's awaitDialSlot).
	const concurrency = 4
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			addr, err := rtB.Client().RootObject(ctx, hp, hs.UUID())
			assert.NoError(t, err)
			assert.Equal(t, hs.RootAddress(), addr)
		}()
	}
	wg.Wait()
}
