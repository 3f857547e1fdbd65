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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/novatechflow/kroxylite/internal/codec"
	"github.com/novatechflow/kroxylite/internal/filterchain"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/internal/metrics"
	"github.com/novatechflow/kroxylite/internal/netfilter"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// Dialer abstracts how FrontendConn opens the broker connection a NetFilter
// selected, so tests can substitute an in-memory pipe for a real TCP dial.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// DefaultDialer dials TCP with a fixed connect timeout.
func DefaultDialer(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// FrontendConn drives one client connection through FrontendState and, once
// a backend is selected, owns the connection's BackendConn and filter
// chain. It is the Go-idiomatic counterpart of the original's
// KafkaProxyFrontendHandler: where that class reacts to Netty channel
// events on a single event-loop thread, FrontendConn runs a blocking read
// loop on its own goroutine and spawns a second goroutine (via
// BackendConn.RunResponseLoop) for the broker's responses.
type FrontendConn struct {
	conn   net.Conn
	reader *bufio.Reader
	state  *FrontendState

	netFilter          netfilter.NetFilter
	filterFactory      *filterchain.Factory
	hookTimeout        time.Duration
	dial               Dialer
	apiVersionsOffload bool

	virtualCluster *netfilter.VirtualCluster
	backend        *BackendConn
	writer         *guardedWriter

	log *slog.Logger
}

// NewFrontendConn wires a newly accepted client connection to the given
// routing and filtering configuration. apiVersionsOffload enables the
// cached-ApiVersions-response fast path (see replyApiVersionsOffload)
// instead of forwarding every ApiVersions request to a broker.
func NewFrontendConn(conn net.Conn, nf netfilter.NetFilter, factory *filterchain.Factory, hookTimeout time.Duration, apiVersionsOffload bool, dial Dialer, log *slog.Logger) *FrontendConn {
	if dial == nil {
		dial = DefaultDialer
	}
	if log == nil {
		log = slog.Default()
	}
	return &FrontendConn{
		conn:               conn,
		reader:             bufio.NewReader(conn),
		state:              NewFrontendState(),
		netFilter:          nf,
		filterFactory:      factory,
		hookTimeout:        hookTimeout,
		apiVersionsOffload: apiVersionsOffload,
		dial:               dial,
		writer:             newGuardedWriter(conn),
		log:                log,
	}
}

// NotifySNI records the TLS SNI hostname an outer TLS terminator
// recognized for this connection. It tolerates arriving at any point in
// the connection's life, since the TLS handshake completes independently
// of where the Kafka-level state machine happens to be.
func (fc *FrontendConn) NotifySNI(hostname string) { fc.state.NotifySNI(hostname) }

// netFilterContext adapts FrontendConn to netfilter.NetFilterContext.
type netFilterContext struct{ f *FrontendConn }

func (c netFilterContext) SNIHostname() (string, bool) { return c.f.state.SNIHostname() }
func (c netFilterContext) LocalPort() int {
	if tcp, ok := c.f.conn.LocalAddr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
func (c netFilterContext) SrcAddress() string   { return c.f.conn.RemoteAddr().String() }
func (c netFilterContext) LocalAddress() string { return c.f.conn.LocalAddr().String() }
func (c netFilterContext) ClientHost() string {
	host, _ := c.f.clientHostPort()
	return host
}
func (c netFilterContext) ClientPort() int {
	_, port := c.f.clientHostPort()
	return port
}
func (c netFilterContext) AuthorizedID() (string, bool) { return c.f.state.AuthorizedID() }
func (c netFilterContext) ClientSoftwareName() string {
	name, _ := c.f.state.ClientSoftware()
	return name
}
func (c netFilterContext) ClientSoftwareVersion() string {
	_, version := c.f.state.ClientSoftware()
	return version
}

// clientHostPort returns the original client address/port: the PROXY
// protocol source if a preamble was received, otherwise the raw TCP peer
// address.
func (fc *FrontendConn) clientHostPort() (string, int) {
	if msg, ok := fc.state.HAProxyMessage(); ok {
		return msg.SourceAddress, msg.SourcePort
	}
	if tcp, ok := fc.conn.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	host, portStr, err := net.SplitHostPort(fc.conn.RemoteAddr().String())
	if err != nil {
		return fc.conn.RemoteAddr().String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// Serve reads requests from the client until the connection closes, ctx is
// cancelled, or an unrecoverable protocol error occurs. It always closes
// the client connection (and the backend connection, if one was opened)
// before returning.
func (fc *FrontendConn) Serve(ctx context.Context) error {
	defer fc.conn.Close()
	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()
	defer metrics.ConnectionsActive.Dec()

	if msg, err := PeekHAProxyV1(fc.reader); err != nil {
		return fmt.Errorf("read HAProxy preamble: %w", err)
	} else if msg != nil {
		if err := fc.state.HandleHAProxyMessage(msg); err != nil {
			return err
		}
		fc.log.Debug("haproxy preamble", "source", msg.SourceAddress, "port", msg.SourcePort)
	}

	predicate := codec.NewAtomic()
	predicate.Store(codec.ForAPIKeys(protocol.APIKeyApiVersions))
	decoder := &codec.RequestDecoder{Predicate: predicate}

	defer func() {
		if fc.backend != nil {
			fc.backend.Close(errors.New("client connection closed"))
		}
	}()

	for {
		f, err := protocol.ReadFrame(fc.reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request frame: %w", err)
		}
		reqFrame, err := decoder.Decode(f.Payload)
		if err != nil {
			return fmt.Errorf("decode request: %w", err)
		}
		if err := fc.handleRequest(ctx, reqFrame, predicate, decoder); err != nil {
			if errors.Is(err, errClosedByFilter) {
				return nil
			}
			return err
		}
	}
}

func (fc *FrontendConn) handleRequest(ctx context.Context, reqFrame frame.RequestFrame, predicate *codec.Atomic, decoder *codec.RequestDecoder) error {
	switch fc.state.State() {
	case StateOutboundActive:
		return fc.backend.Forward(ctx, reqFrame, predicate.ShouldDecode(reqFrame.APIKey(), reqFrame.APIVersion()))
	case StateStart, StateHAProxy, StateAPIVersions:
		if decoded, ok := reqFrame.(*frame.DecodedRequestFrame); ok {
			if apiVersionsReq, ok := decoded.Body.(*protocol.ApiVersionsRequest); ok {
				if err := fc.state.HandleApiVersionsRequest(apiVersionsReq); err != nil {
					return err
				}
				if fc.apiVersionsOffload {
					return fc.replyApiVersionsOffload(decoded.Header)
				}
				return fc.connectAndForward(ctx, reqFrame, predicate)
			}
		}
		return fc.connectAndForward(ctx, reqFrame, predicate)
	default:
		return fc.state.illegal(fmt.Sprintf("request received in state %s", fc.state.State()))
	}
}

// replyApiVersionsOffload answers an ApiVersions request with the proxy's
// own cached capability set (see DefaultAPIVersions), without ever
// selecting or dialing a broker. The connection stays in StateAPIVersions,
// ready to select the upstream on whatever request comes next, and no
// correlation entry is ever created for this exchange.
func (fc *FrontendConn) replyApiVersionsOffload(header *protocol.RequestHeader) error {
	resp := &frame.DecodedResponseFrame{
		Apikey:        protocol.APIKeyApiVersions,
		Apiversion:    header.APIVersion,
		Correlationid: header.CorrelationID,
		Body:          &protocol.ApiVersionsResponse{Versions: DefaultAPIVersions()},
	}
	return fc.writer.writeResponse(resp)
}

func (fc *FrontendConn) connectAndForward(ctx context.Context, reqFrame frame.RequestFrame, predicate *codec.Atomic) error {
	if err := fc.state.BufferAndSelectServer(reqFrame); err != nil {
		return err
	}
	vc, addr, err := fc.netFilter.SelectServer(ctx, netFilterContext{fc})
	if err != nil {
		fc.state.MarkFailed()
		return fmt.Errorf("select backend server: %w", err)
	}
	fc.virtualCluster = vc

	if err := fc.state.InitiateConnect(); err != nil {
		return err
	}
	backendConn, err := fc.dial(ctx, addr.String())
	if err != nil {
		fc.state.MarkFailed()
		return fmt.Errorf("dial backend %s: %w", addr, err)
	}
	if err := fc.state.MarkConnected(); err != nil {
		backendConn.Close()
		return err
	}

	chain := fc.filterFactory.NewChain(fc.hookTimeout)
	fctx := &connFilterContext{front: fc}
	fc.backend = NewBackendConn(backendConn, chain, fctx, fc.writer, fc.log)
	fctx.backend = fc.backend
	if err := fc.backend.Activate(); err != nil {
		return err
	}
	predicate.Store(chain.DecodePredicate())

	go func() {
		err := fc.backend.RunResponseLoop(ctx)
		if err != nil && !errors.Is(err, errClosedByFilter) {
			fc.log.Warn("backend response loop ended", "error", err)
		}
		fc.backend.Close(errors.New("backend connection closed"))
		fc.conn.Close()
	}()

	buffered := fc.state.TakeBufferedFrame()
	if err := fc.backend.Forward(ctx, buffered, predicate.ShouldDecode(buffered.APIKey(), buffered.APIVersion())); err != nil {
		return err
	}
	return fc.state.MarkOutboundActive()
}
