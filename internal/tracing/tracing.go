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

// Package tracing wraps filter hook invocations in OpenTelemetry spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kroxylite-filter-chain")

// StartHook opens a span for a single filter hook invocation. Callers end
// the span via the returned function, passing any error the hook returned.
func StartHook(ctx context.Context, filterName, direction string, apiKey, apiVersion int16) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "FilterHook")
	span.SetAttributes(
		attribute.String("filter.name", filterName),
		attribute.String("filter.direction", direction),
		attribute.Int64("kafka.api_key", int64(apiKey)),
		attribute.Int64("kafka.api_version", int64(apiVersion)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartConnection opens a span covering the life of one client connection.
func StartConnection(ctx context.Context, channelDescriptor string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "ProxyConnection")
	span.SetAttributes(attribute.String("channel", channelDescriptor))
	return ctx, span
}
