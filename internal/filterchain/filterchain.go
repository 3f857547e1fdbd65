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

// Package filterchain builds and runs the ordered list of filters attached
// to a connection: request hooks fire front-to-back, response hooks fire
// back-to-front, and each hook invocation is bounded by a per-hook timeout.
package filterchain

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novatechflow/kroxylite/internal/codec"
	"github.com/novatechflow/kroxylite/internal/filterapi"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/internal/metrics"
	"github.com/novatechflow/kroxylite/internal/tracing"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// DefaultHookTimeout matches the per-hook timeout the distilled design
// calls for absent explicit configuration.
const DefaultHookTimeout = 20 * time.Second

// Factory builds a fresh filter chain for a new connection. Filters are
// typically stateful per connection (e.g. they track an approval decision
// across the life of the session), so a Factory is handed a constructor per
// configured filter rather than a shared instance.
type Factory struct {
	Builders []func() filterapi.Filter
}

// NewChain instantiates one filter chain from the factory's builders. A
// Factory with no builders produces a valid, empty pass-through chain.
func (f *Factory) NewChain(timeout time.Duration) *Chain {
	filters := make([]filterapi.Filter, 0, len(f.Builders))
	for _, build := range f.Builders {
		filters = append(filters, build())
	}
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	return &Chain{filters: filters, hookTimeout: timeout}
}

// Chain is the instantiated, ordered list of filters for one connection.
type Chain struct {
	filters     []filterapi.Filter
	hookTimeout time.Duration
}

// DecodePredicate reports which api keys this chain needs fully decoded:
// exactly those with a filter implementing a narrower per-api hook
// interface. A chain with no such filters keeps everything opaque.
func (c *Chain) DecodePredicate() codec.DecodePredicate {
	keys := make(map[int16]struct{})
	for _, f := range c.filters {
		for _, k := range subscribedAPIKeys(f) {
			keys[k] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return codec.Opaque
	}
	list := make([]int16, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	return codec.ForAPIKeys(list...)
}

func subscribedAPIKeys(f filterapi.Filter) []int16 {
	var keys []int16
	if _, ok := f.(filterapi.ApiVersionsRequestFilter); ok {
		keys = append(keys, protocol.APIKeyApiVersions)
	}
	if _, ok := f.(filterapi.ApiVersionsResponseFilter); ok {
		keys = append(keys, protocol.APIKeyApiVersions)
	}
	if _, ok := f.(filterapi.ProduceRequestFilter); ok {
		keys = append(keys, protocol.APIKeyProduce)
	}
	if _, ok := f.(filterapi.ProduceResponseFilter); ok {
		keys = append(keys, protocol.APIKeyProduce)
	}
	if _, ok := f.(filterapi.FetchRequestFilter); ok {
		keys = append(keys, protocol.APIKeyFetch)
	}
	if _, ok := f.(filterapi.FetchResponseFilter); ok {
		keys = append(keys, protocol.APIKeyFetch)
	}
	if _, ok := f.(filterapi.MetadataRequestFilter); ok {
		keys = append(keys, protocol.APIKeyMetadata)
	}
	if _, ok := f.(filterapi.MetadataResponseFilter); ok {
		keys = append(keys, protocol.APIKeyMetadata)
	}
	if _, ok := f.(filterapi.CreateTopicsRequestFilter); ok {
		keys = append(keys, protocol.APIKeyCreateTopics)
	}
	if _, ok := f.(filterapi.CreateTopicsResponseFilter); ok {
		keys = append(keys, protocol.APIKeyCreateTopics)
	}
	return keys
}

// ProcessRequest runs f through every filter front-to-back, stopping as
// soon as one returns anything other than ActionForward.
func (c *Chain) ProcessRequest(ctx context.Context, fctx filterapi.FilterContext, f frame.RequestFrame) (*filterapi.RequestResult, error) {
	result := filterapi.ForwardRequest(f)
	for i := 0; i < len(c.filters); i++ {
		name := c.filters[i].Name()
		hookCtx, cancel := context.WithTimeout(ctx, c.hookTimeout)
		hookCtx, end := tracing.StartHook(hookCtx, name, "request", f.APIKey(), f.APIVersion())
		timer := prometheus.NewTimer(metrics.FilterHookDuration.WithLabelValues(name, "request"))
		next, err := dispatchRequest(hookCtx, c.filters[i], fctx, result.Frame)
		timer.ObserveDuration()
		end(err)
		cancel()
		if err != nil {
			metrics.FilterHookErrors.WithLabelValues(name, "request").Inc()
			return nil, fmt.Errorf("filter %q request hook: %w", name, err)
		}
		result = next
		if result.Action != filterapi.ActionForward {
			return result, nil
		}
	}
	return result, nil
}

// ProcessResponse runs f through every filter back-to-front.
func (c *Chain) ProcessResponse(ctx context.Context, fctx filterapi.FilterContext, f frame.ResponseFrame) (*filterapi.ResponseResult, error) {
	result := filterapi.ForwardResponse(f)
	for i := len(c.filters) - 1; i >= 0; i-- {
		name := c.filters[i].Name()
		hookCtx, cancel := context.WithTimeout(ctx, c.hookTimeout)
		hookCtx, end := tracing.StartHook(hookCtx, name, "response", f.APIKey(), f.APIVersion())
		timer := prometheus.NewTimer(metrics.FilterHookDuration.WithLabelValues(name, "response"))
		next, err := dispatchResponse(hookCtx, c.filters[i], fctx, result.Frame)
		timer.ObserveDuration()
		end(err)
		cancel()
		if err != nil {
			metrics.FilterHookErrors.WithLabelValues(name, "response").Inc()
			return nil, fmt.Errorf("filter %q response hook: %w", name, err)
		}
		result = next
		if result.Action != filterapi.ActionForward {
			return result, nil
		}
	}
	return result, nil
}

func dispatchRequest(ctx context.Context, f filterapi.Filter, fctx filterapi.FilterContext, rf frame.RequestFrame) (*filterapi.RequestResult, error) {
	if decoded, ok := rf.(*frame.DecodedRequestFrame); ok {
		switch body := decoded.Body.(type) {
		case *protocol.ApiVersionsRequest:
			if h, ok := f.(filterapi.ApiVersionsRequestFilter); ok {
				return h.OnApiVersionsRequest(ctx, fctx, decoded.Header, body)
			}
		case *protocol.ProduceRequest:
			if h, ok := f.(filterapi.ProduceRequestFilter); ok {
				return h.OnProduceRequest(ctx, fctx, decoded.Header, body)
			}
		case *protocol.FetchRequest:
			if h, ok := f.(filterapi.FetchRequestFilter); ok {
				return h.OnFetchRequest(ctx, fctx, decoded.Header, body)
			}
		case *protocol.MetadataRequest:
			if h, ok := f.(filterapi.MetadataRequestFilter); ok {
				return h.OnMetadataRequest(ctx, fctx, decoded.Header, body)
			}
		case *protocol.CreateTopicsRequest:
			if h, ok := f.(filterapi.CreateTopicsRequestFilter); ok {
				return h.OnCreateTopicsRequest(ctx, fctx, decoded.Header, body)
			}
		}
	}
	if h, ok := f.(filterapi.RequestFilter); ok {
		return h.OnRequest(ctx, fctx, rf)
	}
	return filterapi.ForwardRequest(rf), nil
}

func dispatchResponse(ctx context.Context, f filterapi.Filter, fctx filterapi.FilterContext, rf frame.ResponseFrame) (*filterapi.ResponseResult, error) {
	if decoded, ok := rf.(*frame.DecodedResponseFrame); ok {
		switch body := decoded.Body.(type) {
		case *protocol.ApiVersionsResponse:
			if h, ok := f.(filterapi.ApiVersionsResponseFilter); ok {
				return h.OnApiVersionsResponse(ctx, fctx, body)
			}
		case *protocol.ProduceResponse:
			if h, ok := f.(filterapi.ProduceResponseFilter); ok {
				return h.OnProduceResponse(ctx, fctx, body)
			}
		case *protocol.FetchResponse:
			if h, ok := f.(filterapi.FetchResponseFilter); ok {
				return h.OnFetchResponse(ctx, fctx, body)
			}
		case *protocol.MetadataResponse:
			if h, ok := f.(filterapi.MetadataResponseFilter); ok {
				return h.OnMetadataResponse(ctx, fctx, body)
			}
		case *protocol.CreateTopicsResponse:
			if h, ok := f.(filterapi.CreateTopicsResponseFilter); ok {
				return h.OnCreateTopicsResponse(ctx, fctx, body)
			}
		}
	}
	if h, ok := f.(filterapi.ResponseFilter); ok {
		return h.OnResponse(ctx, fctx, rf)
	}
	return filterapi.ForwardResponse(rf), nil
}
