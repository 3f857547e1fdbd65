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

package proxyengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/novatechflow/kroxylite/internal/codec"
	"github.com/novatechflow/kroxylite/internal/correlation"
	"github.com/novatechflow/kroxylite/internal/filterapi"
	"github.com/novatechflow/kroxylite/internal/filterchain"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/internal/metrics"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// BackendConn owns the broker-facing half of one proxied connection: the
// correlation table, the request/response codecs, and the filter chain
// (invoked back-to-front on the way back to the client). Unlike the
// Netty-based original, where a single event loop thread drives both
// halves of a connection, this runs its read loop on its own goroutine;
// Forward and SendRequest may be called concurrently from the frontend's
// goroutine, so the shared correlation.Manager guards itself with a mutex
// (see internal/correlation) rather than relying on thread confinement.
type BackendConn struct {
	conn         net.Conn
	state        *BackendState
	correlations *correlation.Manager
	reqEncoder   *codec.RequestEncoder
	respDecoder  *codec.ResponseDecoder
	respEncoder  codec.ResponseEncoder
	chain        *filterchain.Chain
	fctx         filterapi.FilterContext
	clientWriter *guardedWriter
	log          *slog.Logger
}

// NewBackendConn wraps conn (already dialed to the selected broker) with a
// fresh correlation table and the filter chain selected for this
// connection, and marks the backend state active.
func NewBackendConn(conn net.Conn, chain *filterchain.Chain, fctx filterapi.FilterContext, clientWriter *guardedWriter, log *slog.Logger) *BackendConn {
	correlations := correlation.New()
	return &BackendConn{
		conn:         conn,
		state:        NewBackendState(),
		correlations: correlations,
		reqEncoder:   &codec.RequestEncoder{Correlations: correlations},
		respDecoder:  &codec.ResponseDecoder{Correlations: correlations},
		chain:        chain,
		fctx:         fctx,
		clientWriter: clientWriter,
		log:          log,
	}
}

// Activate transitions the backend state machine to OUTBOUND_ACTIVE. Must
// be called once, right after the TCP connection succeeds.
func (b *BackendConn) Activate() error { return b.state.MarkActive() }

// Forward runs req through the chain front-to-back (see
// filterchain.Chain.ProcessRequest) and, if it survives, re-serializes and
// writes it to the broker with a freshly assigned upstream correlation id.
// decodeResponse controls whether the eventual response will be parsed or
// passed through opaque.
func (b *BackendConn) Forward(ctx context.Context, req frame.RequestFrame, decodeResponse bool) error {
	result, err := b.chain.ProcessRequest(ctx, b.fctx, req)
	if err != nil {
		return fmt.Errorf("request filter chain: %w", err)
	}
	switch result.Action {
	case filterapi.ActionForward:
		payload, err := b.reqEncoder.Encode(result.Frame, decodeResponse)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		if err := protocol.WriteFrame(b.conn, payload); err != nil {
			return fmt.Errorf("write request to broker: %w", err)
		}
		return nil
	case filterapi.ActionShortCircuit:
		metrics.ShortCircuitTotal.WithLabelValues("chain", apiKeyLabel(req.APIKey())).Inc()
		return b.clientWriter.writeResponse(result.Response)
	case filterapi.ActionDrop:
		return nil
	case filterapi.ActionClose:
		b.conn.Close()
		return errClosedByFilter
	default:
		return fmt.Errorf("unknown filter action %d", result.Action)
	}
}

// SendRequest implements the broker-facing half of
// FilterContext.SendRequest: it registers a promise-backed correlation
// entry, writes the sub-request straight to the broker (bypassing the
// filter chain entirely, since an out-of-band request did not originate
// from the client), and blocks until the response arrives, ctx is
// cancelled, or the connection closes.
func (b *BackendConn) SendRequest(ctx context.Context, apiVersion int16, req protocol.Request) (any, error) {
	payload, promise, err := b.reqEncoder.SendRequest(apiVersion, req)
	if err != nil {
		return nil, err
	}
	if err := protocol.WriteFrame(b.conn, payload); err != nil {
		return nil, fmt.Errorf("write sub-request to broker: %w", err)
	}
	select {
	case <-promise.Done():
		return promise.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errClosedByFilter = errors.New("connection closed by filter")

// RunResponseLoop reads frames from the broker until the connection closes
// or ctx is cancelled, driving each one through the response decoder and
// filter chain (back-to-front), and writing whatever survives to the
// client. It returns when the broker connection is exhausted; the caller
// is responsible for then closing the client connection and failing any
// outstanding promises via b.correlations.CancelAll.
func (b *BackendConn) RunResponseLoop(ctx context.Context) error {
	for {
		f, err := protocol.ReadFrame(b.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read response frame: %w", err)
		}
		resp, err := b.respDecoder.Decode(f.Payload)
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if resp == nil {
			// Consumed by an out-of-band SendRequest promise.
			continue
		}
		metrics.CorrelationTableSize.WithLabelValues(b.fctx.VirtualClusterName()).Set(float64(b.correlations.Len()))

		result, err := b.chain.ProcessResponse(ctx, b.fctx, resp)
		if err != nil {
			return fmt.Errorf("response filter chain: %w", err)
		}
		switch result.Action {
		case filterapi.ActionForward:
			if err := b.clientWriter.writeResponse(result.Frame); err != nil {
				return fmt.Errorf("write response to client: %w", err)
			}
		case filterapi.ActionDrop:
			continue
		case filterapi.ActionClose:
			b.conn.Close()
			return errClosedByFilter
		}
	}
}

// Close shuts down the broker connection and fails every outstanding
// promise, e.g. because the client side closed first.
func (b *BackendConn) Close(reason error) {
	b.correlations.CancelAll(reason)
	b.conn.Close()
}

func apiKeyLabel(apiKey int16) string {
	switch apiKey {
	case protocol.APIKeyProduce:
		return "produce"
	case protocol.APIKeyFetch:
		return "fetch"
	case protocol.APIKeyMetadata:
		return "metadata"
	case protocol.APIKeyApiVersions:
		return "api_versions"
	case protocol.APIKeyCreateTopics:
		return "create_topics"
	default:
		return fmt.Sprintf("%d", apiKey)
	}
}

// guardedWriter serializes writes to the client connection: both the
// frontend's short-circuit path and the backend's response loop run on
// separate goroutines and may need to write to the client at the same
// time.
type guardedWriter struct {
	conn net.Conn
	enc  codec.ResponseEncoder
	mu   chan struct{}
}

func newGuardedWriter(conn net.Conn) *guardedWriter {
	w := &guardedWriter{conn: conn, mu: make(chan struct{}, 1)}
	w.mu <- struct{}{}
	return w
}

func (w *guardedWriter) writeResponse(resp frame.ResponseFrame) error {
	payload, err := w.enc.Encode(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	<-w.mu
	defer func() { w.mu <- struct{}{} }()
	return protocol.WriteFrame(w.conn, payload)
}
