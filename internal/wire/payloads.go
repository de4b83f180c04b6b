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

// Kind-specific request/response bodies. The spec treats invocation
// arguments as an opaque blob from the host marshaller (out of scope,
// §1); everything else here is wire-visible routing/bookkeeping data.

// InvocationRequest asks the peer to invoke a method on a live object.
type InvocationRequest struct {
	TargetAddress uint64 `json:"targetAddress"`
	Selector      string `json:"selector"`
	Arguments     []byte `json:"arguments"` // opaque, produced by the host marshaller
}

// InvocationResponse carries the opaque marshalled return value, or the
// address of a further proxy if the return value is itself a live object.
type InvocationResponse struct {
	ReturnValue   []byte `json:"returnValue"`
	ProxyAddress  uint64 `json:"proxyAddress,omitempty"`
	ReturnIsProxy bool   `json:"returnIsProxy"`
}

// ObjectAliveRequest asks whether an object at address is still resident.
type ObjectAliveRequest struct {
	TargetAddress uint64 `json:"targetAddress"`
}

// ObjectAliveResponse answers ObjectAliveRequest.
type ObjectAliveResponse struct {
	Alive bool `json:"alive"`
}

// ClassLookupRequest asks the peer to resolve a class/type by name.
type ClassLookupRequest struct {
	ClassName string `json:"className"`
}

// ClassLookupResponse answers ClassLookupRequest.
type ClassLookupResponse struct {
	Found        bool   `json:"found"`
	ClassAddress uint64 `json:"classAddress,omitempty"`
}

// RootObjectRequest asks a HostService for its root object's address.
type RootObjectRequest struct{}

// RootObjectResponse answers RootObjectRequest.
type RootObjectResponse struct {
	RootAddress uint64 `json:"rootAddress"`
}

// Note: the name-registration handshake (spec.md §6) is not an enveloped
// Request/Response at all - it's a single raw frame whose payload is the
// advertised name's UTF-8 bytes, read directly by the channel pool before
// any envelope is ever decoded on that channel. See internal/pool.
