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

// Package service implements the address book and request-handler table
// that sits on top of the executor/pool layers (spec.md §4.7): HostService
// exposes local objects to peers, ClientService tracks proxies received
// from them.
package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/config"
	"github.com/distobj/dobj/internal/executor"
	"github.com/distobj/dobj/internal/hostport"
	"github.com/distobj/dobj/internal/pool"
	"github.com/distobj/dobj/internal/transport"
	"github.com/distobj/dobj/internal/wire"
)

// Invoker performs the actual method call against a resident object; the
// marshalling of arguments/return values is the host language's concern
// and stays out of scope here (spec.md §1) - HostService only routes the
// opaque request to whichever object the target address names.
type Invoker func(target interface{}, req wire.InvocationRequest) (wire.InvocationResponse, error)

// ClassResolver resolves a class/type name to an address a ClassLookup
// request can hand back to the caller. Nil disables the handler.
type ClassResolver func(className string) (address uint64, found bool)

// HostService binds a TCP listener, its own Executor, a root
// object, and an address→object table (spec.md §3, §4.7). Every accepted
// Channel gets its own reader goroutine feeding frames to Executor.Receive.
type HostService struct {
	cfg      config.Config
	pool     *pool.ChannelPool
	exec     *executor.Executor
	listener *transport.Listener
	logger   *zap.SugaredLogger

	// uuid identifies this service generation; a Request whose ServiceUUID
	// is set and doesn't match is rejected rather than routed here
	// (EDOServiceRequest.matchesService:, SPEC_FULL.md §7).
	uuid string

	invoker  Invoker
	resolver ClassResolver

	objMu    sync.RWMutex
	objects  map[uint64]interface{}
	nextAddr uint64
	rootAddr uint64

	cancel      context.CancelFunc
	invalidated atomic.Bool
}

// New binds a listener on cfg.ServicePort, registers root at address 1,
// installs the default handlers on exec, and starts accepting.
func New(cfg config.Config, p *pool.ChannelPool, exec *executor.Executor, root interface{}, invoker Invoker, resolver ClassResolver, logger *zap.SugaredLogger) (*HostService, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ln, err := transport.Listen(cfg.ServicePort, logger)
	if err != nil {
		return nil, errors.Wrap(err, "service: bind HostService listener")
	}

	hs := &HostService{
		cfg:      cfg,
		pool:     p,
		exec:     exec,
		listener: ln,
		logger:   logger,
		uuid:     uuid.NewString(),
		invoker:  invoker,
		resolver: resolver,
		objects:  make(map[uint64]interface{}),
	}
	hs.rootAddr = hs.register(root)
	hs.registerHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	hs.cancel = cancel
	go func() {
		if err := ln.Serve(ctx, hs.acceptChannel); err != nil {
			hs.logger.Warnw("service: HostService listener stopped", "error", err)
		}
	}()
	return hs, nil
}

// UUID identifies this service generation (EDOServiceRequest.matchesService:).
func (hs *HostService) UUID() string { return hs.uuid }

// SocketPort reports the listener's bound (ip, port).
func (hs *HostService) SocketPort() hostport.SocketPort { return hs.listener.SocketPort() }

// RootAddress is the address the root object was registered under.
func (hs *HostService) RootAddress() uint64 { return hs.rootAddr }

func (hs *HostService) register(obj interface{}) uint64 {
	hs.objMu.Lock()
	defer hs.objMu.Unlock()
	hs.nextAddr++
	hs.objects[hs.nextAddr] = obj
	return hs.nextAddr
}

// Register exposes obj to peers under a freshly assigned address.
func (hs *HostService) Register(obj interface{}) uint64 { return hs.register(obj) }

// Lookup returns the object registered under address, if any.
func (hs *HostService) Lookup(address uint64) (interface{}, bool) {
	hs.objMu.RLock()
	defer hs.objMu.RUnlock()
	obj, ok := hs.objects[address]
	return obj, ok
}

func (hs *HostService) acceptChannel(sock *transport.Socket) {
	ch, err := sock.Upgrade(hs.cfg.MaxFramePayload)
	if err != nil {
		return
	}
	go hs.readChannel(ch)
}

// readChannel is the "spawns a reader that feeds frames into
// Executor.receive" reader of spec.md §4.7. It is the sole reader of ch
// for its whole lifetime; a handler that needs to call back to this same
// peer does so over a different Channel obtained from the pool, which
// keeps the single-reader invariant (spec.md §4.3) intact.
func (hs *HostService) readChannel(ch channel.Channel) {
	defer ch.Close()
	for {
		payload, err := ch.ReceiveFrame()
		if err != nil {
			return
		}
		isResponse, err := wire.PeekClass(payload)
		if err != nil {
			hs.logger.Warnw("service: malformed frame on accepted channel", "error", err)
			return
		}
		if isResponse {
			hs.logger.Warnw("service: unexpected response frame on accepted channel")
			continue
		}
		req, err := wire.DecodeRequestFrame(payload)
		if err != nil {
			hs.logger.Warnw("service: failed to decode request", "error", err)
			return
		}
		if hs.invalidated.Load() || !req.Matches(hs.uuid) {
			resp := wire.NewErrorResponse(req, wire.ErrUnsupportedRequest)
			if err := ch.SendFrame(resp.EncodeFrame()); err != nil {
				return
			}
			continue
		}
		hs.exec.Receive(req, ch, hs)
	}
}

func (hs *HostService) registerHandlers() {
	hs.exec.RegisterHandler(wire.KindRootObject, hs.handleRootObject)
	hs.exec.RegisterHandler(wire.KindObjectAlive, hs.handleObjectAlive)
	if hs.resolver != nil {
		hs.exec.RegisterHandler(wire.KindClassLookup, hs.handleClassLookup)
	}
	if hs.invoker != nil {
		hs.exec.RegisterHandler(wire.KindInvocation, hs.handleInvocation)
	}
}

func (hs *HostService) handleRootObject(req wire.Request, _ interface{}) (wire.Response, error) {
	return wire.NewResponse(req, wire.RootObjectResponse{RootAddress: hs.rootAddr})
}

// handleObjectAlive answers the ObjectAlive query added back from
// original_source/ (SPEC_FULL.md §7).
func (hs *HostService) handleObjectAlive(req wire.Request, _ interface{}) (wire.Response, error) {
	var body wire.ObjectAliveRequest
	if err := req.Decode(&body); err != nil {
		return wire.Response{}, err
	}
	_, alive := hs.Lookup(body.TargetAddress)
	return wire.NewResponse(req, wire.ObjectAliveResponse{Alive: alive})
}

func (hs *HostService) handleClassLookup(req wire.Request, _ interface{}) (wire.Response, error) {
	var body wire.ClassLookupRequest
	if err := req.Decode(&body); err != nil {
		return wire.Response{}, err
	}
	addr, found := hs.resolver(body.ClassName)
	return wire.NewResponse(req, wire.ClassLookupResponse{Found: found, ClassAddress: addr})
}

func (hs *HostService) handleInvocation(req wire.Request, _ interface{}) (wire.Response, error) {
	var body wire.InvocationRequest
	if err := req.Decode(&body); err != nil {
		return wire.Response{}, err
	}
	obj, ok := hs.Lookup(body.TargetAddress)
	if !ok {
		return wire.Response{}, errors.Errorf("service: no object at address %d", body.TargetAddress)
	}
	result, err := hs.invoker(obj, body)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.NewResponse(req, result)
}

// Invalidate closes the listener, drops the object table, and asks the
// pool to drop channels bound to this service's port (spec.md §4.7). Safe
// to call more than once.
func (hs *HostService) Invalidate() error {
	if !hs.invalidated.CompareAndSwap(false, true) {
		return nil
	}
	hs.cancel()
	err := hs.listener.Close()

	hs.objMu.Lock()
	hs.objects = make(map[uint64]interface{})
	hs.objMu.Unlock()

	hs.pool.RemoveAll(hostport.ForPort(hs.SocketPort().Port()))
	return err
}
