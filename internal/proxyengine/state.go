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

// Package proxyengine implements the per-connection state machines that
// drive a client connection (FrontendState) and its paired broker
// connection (BackendState) through the stages of proxying a Kafka
// session: an optional HAProxy preamble, an optional offloaded ApiVersions
// exchange, selecting and dialing a broker, and finally steady-state
// bidirectional forwarding.
package proxyengine

import (
	"errors"
	"fmt"

	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// State is a stage in a client connection's life. Transitions are:
//
//	START ──→ HA_PROXY ──→ API_VERSIONS ─╮─→ CONNECTING ──→ CONNECTED ──→ OUTBOUND_ACTIVE
//	  ╰──────────╰──────────────╰────────╯
//
// any of the above may also transition to FAILED on an unexpected event.
type State int

const (
	StateStart State = iota
	StateHAProxy
	StateAPIVersions
	StateConnecting
	StateConnected
	StateOutboundActive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateHAProxy:
		return "HA_PROXY"
	case StateAPIVersions:
		return "API_VERSIONS"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateOutboundActive:
		return "OUTBOUND_ACTIVE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrIllegalState is wrapped by every error that also forces the state
// machine into StateFailed.
var ErrIllegalState = errors.New("illegal proxy connection state transition")

// ErrAlreadyConnecting is returned by FrontendState.InitiateConnect when
// called a second time on the same connection: there can only ever be one
// backend dial attempt per client connection.
var ErrAlreadyConnecting = errors.New("initiateConnect called more than once")

// FrontendState tracks a single client connection from accept through to
// steady-state forwarding. It holds no I/O of its own; FrontendConn (in
// frontend.go) drives it against a real net.Conn.
type FrontendState struct {
	state State

	sniHostname string
	sniSet      bool

	clientSoftwareName    string
	clientSoftwareVersion string

	authorizedID string
	authorizedSet bool

	haproxyMsg *HAProxyMessage

	bufferedFrame frame.RequestFrame
	connecting    bool
}

// NewFrontendState returns a state machine in StateStart.
func NewFrontendState() *FrontendState {
	return &FrontendState{state: StateStart}
}

// State reports the current stage.
func (s *FrontendState) State() State { return s.state }

func (s *FrontendState) illegal(msg string) error {
	prev := s.state
	s.state = StateFailed
	return fmt.Errorf("%w: %s (state=%s)", ErrIllegalState, msg, prev)
}

// NotifySNI records the TLS SNI hostname the client presented. It is
// tolerant of any state: the TLS handshake completes independently of
// where the Kafka-level state machine happens to be.
func (s *FrontendState) NotifySNI(hostname string) {
	s.sniHostname = hostname
	s.sniSet = true
}

// SNIHostname returns the hostname recorded by NotifySNI, if any.
func (s *FrontendState) SNIHostname() (string, bool) { return s.sniHostname, s.sniSet }

// SetAuthorizedID records the principal an authentication layer
// established for this connection.
func (s *FrontendState) SetAuthorizedID(id string) {
	s.authorizedID = id
	s.authorizedSet = true
}

// AuthorizedID returns the principal set by SetAuthorizedID, if any.
func (s *FrontendState) AuthorizedID() (string, bool) { return s.authorizedID, s.authorizedSet }

// ClientSoftware returns the name/version the client declared in its
// ApiVersions request, once HandleApiVersionsRequest has run.
func (s *FrontendState) ClientSoftware() (name, version string) {
	return s.clientSoftwareName, s.clientSoftwareVersion
}

// HandleHAProxyMessage records that a PROXY-protocol preamble was received,
// along with the original client address/port it carried. Only legal as the
// very first thing on the connection.
func (s *FrontendState) HandleHAProxyMessage(msg *HAProxyMessage) error {
	if s.state != StateStart {
		return s.illegal("HAProxy message received")
	}
	s.state = StateHAProxy
	s.haproxyMsg = msg
	return nil
}

// HAProxyMessage returns the preamble recorded by HandleHAProxyMessage, if
// the connection carried one.
func (s *FrontendState) HAProxyMessage() (*HAProxyMessage, bool) {
	return s.haproxyMsg, s.haproxyMsg != nil
}

// HandleApiVersionsRequest records the client's declared software name and
// version and advances to StateAPIVersions. Only legal before a backend
// connection attempt has begun.
func (s *FrontendState) HandleApiVersionsRequest(req *protocol.ApiVersionsRequest) error {
	if s.state != StateStart && s.state != StateHAProxy {
		return s.illegal("ApiVersions request received")
	}
	s.state = StateAPIVersions
	s.clientSoftwareName = req.ClientSoftwareName
	s.clientSoftwareVersion = req.ClientSoftwareVersion
	return nil
}

// BufferAndSelectServer stashes f as the single message that must wait for
// the backend connection to come up, and advances to StateConnecting.
// There can only be one such buffered message: FrontendConn reads no further
// client frame until connectAndForward returns, so a second call before the
// backend is active would indicate a logic error upstream.
func (s *FrontendState) BufferAndSelectServer(f frame.RequestFrame) error {
	if s.state != StateStart && s.state != StateHAProxy && s.state != StateAPIVersions {
		return s.illegal("request received")
	}
	if s.bufferedFrame != nil {
		return s.illegal("already have a buffered message")
	}
	s.bufferedFrame = f
	s.state = StateConnecting
	return nil
}

// TakeBufferedFrame returns and clears the frame stashed by
// BufferAndSelectServer.
func (s *FrontendState) TakeBufferedFrame() frame.RequestFrame {
	f := s.bufferedFrame
	s.bufferedFrame = nil
	return f
}

// InitiateConnect marks that a backend dial has begun. It is an error to
// call this twice for the same connection.
func (s *FrontendState) InitiateConnect() error {
	if s.connecting {
		return ErrAlreadyConnecting
	}
	s.connecting = true
	return nil
}

// MarkConnected advances to StateConnected once the backend dial succeeds.
func (s *FrontendState) MarkConnected() error {
	if s.state != StateConnecting {
		return s.illegal("outbound connected")
	}
	s.state = StateConnected
	return nil
}

// MarkOutboundActive advances to StateOutboundActive once the buffered
// message (if any) has been forwarded and steady-state proxying begins.
func (s *FrontendState) MarkOutboundActive() error {
	if s.state != StateConnected {
		return s.illegal("outbound channel active")
	}
	s.state = StateOutboundActive
	return nil
}

// MarkFailed forces the state machine into StateFailed, e.g. because the
// backend dial errored.
func (s *FrontendState) MarkFailed() { s.state = StateFailed }

// BackendState tracks the broker-facing side of one proxied connection. It
// is deliberately small: most of what the Java implementation tracks on
// the backend handler (the correlation table, the decode predicate) lives
// in internal/correlation and internal/codec here instead, shared with the
// frontend side via the connection object that owns both.
type BackendState struct {
	state State
}

// NewBackendState returns a state machine that starts already connecting,
// since a BackendState is only constructed once FrontendState has decided
// to dial a broker.
func NewBackendState() *BackendState {
	return &BackendState{state: StateConnecting}
}

func (s *BackendState) State() State { return s.state }

func (s *BackendState) illegal(msg string) error {
	prev := s.state
	s.state = StateFailed
	return fmt.Errorf("%w: %s (state=%s)", ErrIllegalState, msg, prev)
}

// MarkActive advances to StateOutboundActive once the broker TCP connection
// is established.
func (s *BackendState) MarkActive() error {
	if s.state != StateConnecting {
		return s.illegal("backend channel active")
	}
	s.state = StateOutboundActive
	return nil
}

// MarkFailed forces the state machine into StateFailed.
func (s *BackendState) MarkFailed() { s.state = StateFailed }
