// Copyright 2025-2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filterapi defines the interface a filter implements to inspect
// and mutate Kafka requests and responses flowing through a connection, and
// the context object the filter chain runtime hands it to interact with
// the rest of the pipeline.
package filterapi

import (
	"context"

	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// Action is the disposition a filter hook returns for the frame it saw.
type Action int

const (
	// ActionForward sends Frame onward (to the broker for a request hook,
	// to the client for a response hook), continuing the chain.
	ActionForward Action = iota
	// ActionShortCircuit answers the request directly with Response
	// without ever reaching the broker. Only valid from a request hook.
	ActionShortCircuit
	// ActionDrop discards the frame silently; nothing is sent and the
	// chain stops.
	ActionDrop
	// ActionClose drops the frame and closes the connection.
	ActionClose
)

// RequestResult is returned by every request-hook invocation.
type RequestResult struct {
	Action Action
	// Frame is the (possibly mutated) request to forward. Set for
	// ActionForward.
	Frame frame.RequestFrame
	// Response is the frame to answer the client with directly. Set for
	// ActionShortCircuit.
	Response frame.ResponseFrame
}

// ResponseResult is returned by every response-hook invocation.
type ResponseResult struct {
	Action Action
	// Frame is the (possibly mutated) response to forward. Set for
	// ActionForward.
	Frame frame.ResponseFrame
}

// ForwardRequest builds the common "pass this frame on unchanged" result.
func ForwardRequest(f frame.RequestFrame) *RequestResult {
	return &RequestResult{Action: ActionForward, Frame: f}
}

// ForwardResponse builds the common "pass this frame on unchanged" result.
func ForwardResponse(f frame.ResponseFrame) *ResponseResult {
	return &ResponseResult{Action: ActionForward, Frame: f}
}

// ShortCircuit answers the client with resp without forwarding the request
// that triggered the hook to the broker.
func ShortCircuit(resp frame.ResponseFrame) *RequestResult {
	return &RequestResult{Action: ActionShortCircuit, Response: resp}
}

// DropRequest discards the request silently.
func DropRequest() *RequestResult { return &RequestResult{Action: ActionDrop} }

// CloseConnection drops the request and closes the connection.
func CloseConnection() *RequestResult { return &RequestResult{Action: ActionClose} }

// FilterContext is the handle the chain runtime gives a filter for the
// duration of a single hook invocation. It exposes connection metadata and
// the operations a filter needs beyond simply returning a Request/ResponseResult:
// forwarding on behalf of a later asynchronous continuation, issuing an
// out-of-band request of its own, and getting a scratch buffer for
// building new message bodies.
type FilterContext interface {
	// ChannelDescriptor describes the connection, for logging.
	ChannelDescriptor() string
	// SNIHostname returns the TLS SNI hostname the client presented, if
	// any (ok is false for a non-TLS connection or a client that sent no
	// SNI extension).
	SNIHostname() (hostname string, ok bool)
	// SrcAddress and LocalAddress are the raw TCP peer and local
	// addresses of the socket, regardless of any HAProxy PROXY protocol
	// preamble.
	SrcAddress() string
	LocalAddress() string
	// ClientHost and ClientPort are the original client's address as
	// reported by a PROXY protocol preamble, falling back to SrcAddress
	// when no preamble was sent.
	ClientHost() string
	ClientPort() int
	// ClientSoftwareName and ClientSoftwareVersion return what the client
	// declared in its ApiVersions request, if it has sent one yet.
	ClientSoftwareName() string
	ClientSoftwareVersion() string
	// AuthorizedID returns the principal the connection authenticated as,
	// if authentication has completed.
	AuthorizedID() (id string, ok bool)
	// VirtualClusterName identifies which configured virtual cluster this
	// connection was routed to.
	VirtualClusterName() string
	// AllocateByteBuffer returns a scratch buffer a filter can use to
	// build a new request or response body; its backing storage is only
	// guaranteed to be valid for the current hook invocation.
	AllocateByteBuffer(initialCapacity int) []byte
	// ForwardRequest builds the same Forward result as the package-level
	// ForwardRequest(); the chain acts on it only when a hook returns it.
	ForwardRequest(f frame.RequestFrame) *RequestResult
	// ForwardResponse mirrors ForwardRequest for the response path.
	ForwardResponse(f frame.ResponseFrame) *ResponseResult
	// SendRequest issues an out-of-band request toward the broker on this
	// connection, bypassing the entire filter chain (every filter, not only
	// those after the caller) on the way out and on the way back, and blocks until the
	// broker's response arrives, ctx is cancelled, or the connection
	// closes. The returned value is the decoded response body (e.g.
	// *protocol.MetadataResponse).
	SendRequest(ctx context.Context, apiVersion int16, req protocol.Request) (any, error)
}

// Filter is the base interface every filter implements; its only method
// is Name. A filter participates in the chain by additionally
// implementing RequestFilter, ResponseFilter, or one of the narrower
// per-api-key hook interfaces below.
type Filter interface {
	// Name identifies the filter, primarily for logging and metrics.
	Name() string
}

// RequestFilter is the catch-all request hook, invoked for every request
// api key a filter does not have a narrower hook for.
type RequestFilter interface {
	Filter
	OnRequest(ctx context.Context, fctx FilterContext, f frame.RequestFrame) (*RequestResult, error)
}

// ResponseFilter is the catch-all response hook.
type ResponseFilter interface {
	Filter
	OnResponse(ctx context.Context, fctx FilterContext, f frame.ResponseFrame) (*ResponseResult, error)
}

// The per-api-key hook interfaces below let a filter subscribe only to the
// messages it cares about; the chain runtime decodes a frame only when at
// least one filter in the chain implements the matching hook (see
// internal/codec.DecodePredicate). A DecodedRequestFrame/DecodedResponseFrame's
// concrete Body type tells the runtime which of these to call.

type ApiVersionsRequestFilter interface {
	Filter
	OnApiVersionsRequest(ctx context.Context, fctx FilterContext, header *protocol.RequestHeader, req *protocol.ApiVersionsRequest) (*RequestResult, error)
}

type ApiVersionsResponseFilter interface {
	Filter
	OnApiVersionsResponse(ctx context.Context, fctx FilterContext, resp *protocol.ApiVersionsResponse) (*ResponseResult, error)
}

type ProduceRequestFilter interface {
	Filter
	OnProduceRequest(ctx context.Context, fctx FilterContext, header *protocol.RequestHeader, req *protocol.ProduceRequest) (*RequestResult, error)
}

type ProduceResponseFilter interface {
	Filter
	OnProduceResponse(ctx context.Context, fctx FilterContext, resp *protocol.ProduceResponse) (*ResponseResult, error)
}

type FetchRequestFilter interface {
	Filter
	OnFetchRequest(ctx context.Context, fctx FilterContext, header *protocol.RequestHeader, req *protocol.FetchRequest) (*RequestResult, error)
}

type FetchResponseFilter interface {
	Filter
	OnFetchResponse(ctx context.Context, fctx FilterContext, resp *protocol.FetchResponse) (*ResponseResult, error)
}

type MetadataRequestFilter interface {
	Filter
	OnMetadataRequest(ctx context.Context, fctx FilterContext, header *protocol.RequestHeader, req *protocol.MetadataRequest) (*RequestResult, error)
}

type MetadataResponseFilter interface {
	Filter
	OnMetadataResponse(ctx context.Context, fctx FilterContext, resp *protocol.MetadataResponse) (*ResponseResult, error)
}

type CreateTopicsRequestFilter interface {
	Filter
	OnCreateTopicsRequest(ctx context.Context, fctx FilterContext, header *protocol.RequestHeader, req *protocol.CreateTopicsRequest) (*RequestResult, error)
}

type CreateTopicsResponseFilter interface {
	Filter
	OnCreateTopicsResponse(ctx context.Context, fctx FilterContext, resp *protocol.CreateTopicsResponse) (*ResponseResult, error)
}
