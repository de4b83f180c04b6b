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
	"sync"

	"go.uber.org/zap"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/config"
	"github.com/distobj/dobj/internal/executor"
	"github.com/distobj/dobj/internal/pool"
	"github.com/distobj/dobj/internal/service"
)

// Config is the runtime's tunable surface (spec.md §6).
type Config = config.Config

// DefaultConfig returns sensible defaults for every option.
func DefaultConfig() Config { return config.Default() }

// DeviceDialer opens a bidirectional byte stream to a USB-attached device;
// a Runtime that never fetches a device-routed HostPort can pass nil.
type DeviceDialer = channel.DeviceDialer

// Invoker performs the actual method call against a resident object once
// HostService has resolved a target address; the marshalling of
// arguments/return values is the host language's concern (spec.md §1).
type Invoker = service.Invoker

// ClassResolver resolves a class/type name to an address for ClassLookup.
type ClassResolver = service.ClassResolver

// Runtime is one process's binding of the remote-invocation plane: a
// single ChannelPool shared by everything (it has no serialisation
// requirement), a process-wide ClientService with its own dedicated
// Executor, and zero or more HostServices each with their own - spec.md
// §5 requires strict serialisation within one service but allows
// parallelism across services, so no two services may share a Q.
type Runtime struct {
	cfg    Config
	logger *zap.SugaredLogger

	pool *pool.ChannelPool

	clientQueue *executor.SerialQueue
	client      *service.ClientService

	mu         sync.Mutex
	hostQueues []*executor.SerialQueue
	hosts      []*service.HostService
}

// New builds a Runtime. deviceDialer may be nil if the process never
// fetches a device-routed HostPort. logger may be nil (defaults to a
// no-op logger).
func New(cfg Config, deviceDialer DeviceDialer, logger *zap.Logger) (*Runtime, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	var sugared *zap.SugaredLogger
	if logger != nil {
		sugared = logger.Sugar()
	} else {
		sugared = zap.NewNop().Sugar()
	}

	p := pool.New(cfg, deviceDialer, sugared)

	// ClientService gets its own SerialQueue/Executor, never shared with a
	// HostService: it is process-wide and its exported methods are called
	// from arbitrary goroutines, so every outbound call is serialized
	// through this one queue (see ClientService.sendSerialized) instead of
	// contending with a HostService's own request dispatch.
	clientQueue := executor.NewSerialQueue()
	clientExec := executor.New(clientQueue, sugared)
	client := service.NewClientService(cfg, p, clientExec)

	return &Runtime{
		cfg:         cfg,
		logger:      sugared,
		pool:        p,
		clientQueue: clientQueue,
		client:      client,
	}, nil
}

// Host exposes root to peers on cfg.ServicePort, installing invoker and
// resolver as the handlers for Invocation and ClassLookup respectively
// (either may be nil to leave that kind unsupported). Each HostService
// gets a fresh SerialQueue/Executor, so a slow or blocking handler on one
// service's objects never stalls another service hosted by this same
// Runtime.
func (r *Runtime) Host(root interface{}, invoker Invoker, resolver ClassResolver) (*service.HostService, error) {
	q := executor.NewSerialQueue()
	exec := executor.New(q, r.logger)

	hs, err := service.New(r.cfg, r.pool, exec, root, invoker, resolver, r.logger)
	if err != nil {
		q.Close()
		return nil, err
	}
	r.mu.Lock()
	r.hostQueues = append(r.hostQueues, q)
	r.hosts = append(r.hosts, hs)
	r.mu.Unlock()
	return hs, nil
}

// Client returns the process-wide ClientService used to call into objects
// other processes (or this one's own HostServices) expose.
func (r *Runtime) Client() *service.ClientService { return r.client }

// Pool exposes the underlying ChannelPool for diagnostics (Count) and for
// callers that need ServiceConnectionPort to advertise a name-based
// HostPort to a peer.
func (r *Runtime) Pool() *pool.ChannelPool { return r.pool }

// Close invalidates every HostService this Runtime created, then tears
// down the pool and every SerialQueue (the per-host ones and the client's).
func (r *Runtime) Close() error {
	r.mu.Lock()
	hosts := r.hosts
	hostQueues := r.hostQueues
	r.hosts = nil
	r.hostQueues = nil
	r.mu.Unlock()

	for _, hs := range hosts {
		hs.Invalidate()
	}
	for _, q := range hostQueues {
		q.Close()
	}
	err := r.pool.Close()
	r.clientQueue.Close()
	return err
}
