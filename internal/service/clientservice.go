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

package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/distobj/dobj/internal/channel"
	"github.com/distobj/dobj/internal/config"
	"github.com/distobj/dobj/internal/executor"
	"github.com/distobj/dobj/internal/hostport"
	"github.com/distobj/dobj/internal/pool"
	"github.com/distobj/dobj/internal/wire"
)

// ProxyKey identifies a remote object round-tripped to this process: the
// same key always resolves to the same local Proxy, which is what lets
// identity comparisons on proxies work (spec.md §4.7, SPEC_FULL.md §7).
type ProxyKey struct {
	RemoteAddress uint64
	ServiceUUID   string
}

// Proxy is the local stand-in for a remote object. It carries enough to
// issue further calls against the same remote address: the HostPort of
// the service that owns it and the key it's registered under.
type Proxy struct {
	Key      ProxyKey
	HostPort hostport.HostPort
}

// ClientService is process-wide: the only state it owns is the proxy
// registry (spec.md §3, §4.7). It issues outbound calls through its own
// dedicated Executor, which is never shared with a HostService; the
// ChannelPool it fetches from may be shared with HostServices.
//
// Exported methods here are called from arbitrary caller goroutines, but
// Executor.SendRequest requires the caller already be "running on Q"
// (internal/executor/executor.go) - one top-level call in flight per
// Executor at a time. call() therefore never invokes SendRequest directly;
// it submits the call as a unit of work on cs.exec's SerialQueue and blocks
// for the result, so concurrent RootObject/ObjectAlive/Invoke calls from
// different goroutines queue up one at a time instead of racing on
// cs.exec's internal state.
type ClientService struct {
	cfg  config.Config
	pool *pool.ChannelPool
	exec *executor.Executor

	mu      sync.RWMutex
	proxies map[ProxyKey]*Proxy
}

// NewClientService builds a ClientService against p and exec. exec should
// be dedicated to this ClientService (see the type doc) rather than
// reused from a HostService.
func NewClientService(cfg config.Config, p *pool.ChannelPool, exec *executor.Executor) *ClientService {
	return &ClientService{
		cfg:     cfg,
		pool:    p,
		exec:    exec,
		proxies: make(map[ProxyKey]*Proxy),
	}
}

// RootObject fetches hp's root object address (spec.md end-to-end
// scenario 1).
func (cs *ClientService) RootObject(ctx context.Context, hp hostport.HostPort, serviceUUID string) (uint64, error) {
	resp, err := cs.call(ctx, hp, serviceUUID, wire.KindRootObject, wire.RootObjectRequest{})
	if err != nil {
		return 0, err
	}
	var body wire.RootObjectResponse
	if err := resp.Decode(&body); err != nil {
		return 0, err
	}
	return body.RootAddress, nil
}

// ObjectAlive queries whether address is still resident on hp's service.
func (cs *ClientService) ObjectAlive(ctx context.Context, hp hostport.HostPort, serviceUUID string, address uint64) (bool, error) {
	resp, err := cs.call(ctx, hp, serviceUUID, wire.KindObjectAlive, wire.ObjectAliveRequest{TargetAddress: address})
	if err != nil {
		return false, err
	}
	var body wire.ObjectAliveResponse
	if err := resp.Decode(&body); err != nil {
		return false, err
	}
	return body.Alive, nil
}

// Invoke calls selector on the object at targetAddress, registering a
// Proxy for the result if the peer reports it as a live-object reference
// rather than a plain value (spec.md §4.7).
func (cs *ClientService) Invoke(ctx context.Context, hp hostport.HostPort, serviceUUID string, targetAddress uint64, selector string, arguments []byte) (wire.InvocationResponse, error) {
	resp, err := cs.call(ctx, hp, serviceUUID, wire.KindInvocation, wire.InvocationRequest{
		TargetAddress: targetAddress,
		Selector:      selector,
		Arguments:     arguments,
	})
	if err != nil {
		return wire.InvocationResponse{}, err
	}
	var out wire.InvocationResponse
	if err := resp.Decode(&out); err != nil {
		return wire.InvocationResponse{}, err
	}
	if out.ReturnIsProxy {
		cs.registerProxy(ProxyKey{RemoteAddress: out.ProxyAddress, ServiceUUID: serviceUUID}, hp)
	}
	return out, nil
}

// call fetches a channel for hp, issues req through cs's dedicated
// Executor, and releases the channel back to the pool on success. On any
// error the channel has already been evicted by the Executor and must not
// be released (spec.md §4.6.6).
func (cs *ClientService) call(ctx context.Context, hp hostport.HostPort, serviceUUID, kind string, body interface{}) (wire.Response, error) {
	ch, err := cs.pool.Fetch(ctx, hp)
	if err != nil {
		return wire.Response{}, err
	}

	req, err := wire.NewRequest(uuid.NewString(), kind, body)
	if err != nil {
		ch.Close()
		return wire.Response{}, err
	}
	req.ServiceUUID = serviceUUID

	callCtx := ctx
	var cancel context.CancelFunc
	if cs.cfg.RequestTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cs.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := cs.sendSerialized(callCtx, req, ch)
	if err != nil {
		return wire.Response{}, err
	}
	cs.pool.Release(ch)

	if resp.IsError() {
		return wire.Response{}, resp.AsError()
	}
	return resp, nil
}

// sendSerialized runs req through cs.exec.SendRequest on cs.exec's
// SerialQueue rather than on the calling goroutine, so that however many
// goroutines call RootObject/ObjectAlive/Invoke concurrently, only one
// SendRequest is ever actually in flight against cs.exec at a time.
func (cs *ClientService) sendSerialized(ctx context.Context, req wire.Request, ch channel.Channel) (wire.Response, error) {
	type result struct {
		resp wire.Response
		err  error
	}
	done := make(chan result, 1)
	cs.exec.Queue().Submit(func() {
		resp, err := cs.exec.SendRequest(ctx, req, ch, cs)
		done <- result{resp, err}
	})
	r := <-done
	return r.resp, r.err
}

// Proxy returns the registered Proxy for key, if any.
func (cs *ClientService) Proxy(key ProxyKey) (*Proxy, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	p, ok := cs.proxies[key]
	return p, ok
}

func (cs *ClientService) registerProxy(key ProxyKey, hp hostport.HostPort) *Proxy {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if p, ok := cs.proxies[key]; ok {
		return p
	}
	p := &Proxy{Key: key, HostPort: hp}
	cs.proxies[key] = p
	return p
}

// ReleaseProxy drops key from the registry. spec.md §4.7 describes this
// as scheduling a Release message to the originating service, but no
// Release request kind exists among the wire's known kinds (spec.md §3);
// the registry entry is simply dropped, matching the "weakly referenced"
// characterisation without inventing an untyped wire message.
func (cs *ClientService) ReleaseProxy(key ProxyKey) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.proxies, key)
}
