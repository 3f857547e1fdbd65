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
	"net"
	"testing"
	"time"

	"github.com/novatechflow/kroxylite/internal/filterchain"
	"github.com/novatechflow/kroxylite/internal/netfilter"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// pipeDialer is a dial function that always returns one net.Pipe
// connection, letting a test dial a fake broker without touching a real socket.
type pipeDialer struct {
	conn net.Conn
}

func (d pipeDialer) dial(ctx context.Context, addr string) (net.Conn, error) {
	return d.conn, nil
}

func TestFrontendConnForwardsMetadataRequestToBroker(t *testing.T) {
	clientSide, proxyClientSide := net.Pipe()
	proxyBrokerSide, brokerSide := net.Pipe()
	defer clientSide.Close()

	cluster := &netfilter.VirtualCluster{
		Name:             "test-cluster",
		BootstrapServers: []netfilter.HostPort{{Host: "broker", Port: 9092}},
	}
	nf := netfilter.NewStaticNetFilter(cluster)
	factory := &filterchain.Factory{}

	fc := NewFrontendConn(proxyClientSide, nf, factory, 2*time.Second, false, pipeDialer{proxyBrokerSide}.dial, nil)

	done := make(chan error, 1)
	go func() { done <- fc.Serve(context.Background()) }()

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyMetadata, APIVersion: 0, CorrelationID: 42}
	payload, err := protocol.EncodeRequest(header, &protocol.MetadataRequest{})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if err := protocol.WriteFrame(clientSide, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	brokerFrame, err := protocol.ReadFrame(brokerSide)
	if err != nil {
		t.Fatalf("broker ReadFrame: %v", err)
	}
	gotHeader, gotBody, err := protocol.ParseRequestHeader(brokerFrame.Payload)
	if err != nil {
		t.Fatalf("ParseRequestHeader: %v", err)
	}
	_ = gotBody
	if gotHeader.APIKey != protocol.APIKeyMetadata {
		t.Fatalf("broker saw api key %d, want Metadata", gotHeader.APIKey)
	}
	if gotHeader.CorrelationID == 42 {
		t.Fatalf("broker should have received a rewritten upstream correlation id, got the client's original 42")
	}

	respHeader := protocol.EncodeResponseHeader(gotHeader.CorrelationID, protocol.ResponseHeaderVersion(protocol.APIKeyMetadata, 0))
	respBody, err := protocol.EncodeResponseBody(protocol.APIKeyMetadata, 0, &protocol.MetadataResponse{})
	if err != nil {
		t.Fatalf("EncodeResponseBody: %v", err)
	}
	if err := protocol.WriteFrame(brokerSide, append(respHeader, respBody...)); err != nil {
		t.Fatalf("broker WriteFrame: %v", err)
	}

	clientFrame, err := protocol.ReadFrame(clientSide)
	if err != nil {
		t.Fatalf("client ReadFrame: %v", err)
	}
	correlationID, _, err := protocol.DecodeResponseHeader(clientFrame.Payload, protocol.ResponseHeaderVersion(protocol.APIKeyMetadata, 0))
	if err != nil {
		t.Fatalf("DecodeResponseHeader: %v", err)
	}
	if correlationID != 42 {
		t.Fatalf("client correlation id = %d, want 42 (the original)", correlationID)
	}

	clientSide.Close()
	brokerSide.Close()
	<-done
}

// TestFrontendConnApiVersionsOffloadAnswersWithoutUpstreamConnect covers
// §8 scenario 1: a client's ApiVersions request, with offload enabled, is
// answered from the cached capability set before any upstream connection
// is attempted, and the correlation manager never gets an entry for it.
func TestFrontendConnApiVersionsOffloadAnswersWithoutUpstreamConnect(t *testing.T) {
	clientSide, proxyClientSide := net.Pipe()
	defer clientSide.Close()

	cluster := &netfilter.VirtualCluster{
		Name:             "test-cluster",
		BootstrapServers: []netfilter.HostPort{{Host: "broker", Port: 9092}},
	}
	nf := netfilter.NewStaticNetFilter(cluster)
	factory := &filterchain.Factory{}

	dial := func(ctx context.Context, addr string) (net.Conn, error) {
		t.Fatal("dial should never be called for an offloaded ApiVersions request")
		return nil, errors.New("unreachable")
	}

	fc := NewFrontendConn(proxyClientSide, nf, factory, 2*time.Second, true, dial, nil)

	done := make(chan error, 1)
	go func() { done <- fc.Serve(context.Background()) }()

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyApiVersions, APIVersion: 3, CorrelationID: 7}
	req := &protocol.ApiVersionsRequest{ClientSoftwareName: "test-client", ClientSoftwareVersion: "1.0"}
	payload, err := protocol.EncodeRequest(header, req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if err := protocol.WriteFrame(clientSide, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	clientFrame, err := protocol.ReadFrame(clientSide)
	if err != nil {
		t.Fatalf("client ReadFrame: %v", err)
	}
	headerVersion := protocol.ResponseHeaderVersion(protocol.APIKeyApiVersions, 3)
	correlationID, body, err := protocol.DecodeResponseHeader(clientFrame.Payload, headerVersion)
	if err != nil {
		t.Fatalf("DecodeResponseHeader: %v", err)
	}
	if correlationID != 7 {
		t.Fatalf("correlation id = %d, want 7", correlationID)
	}
	decoded, err := protocol.ParseResponse(protocol.APIKeyApiVersions, 3, body)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	resp, ok := decoded.(*protocol.ApiVersionsResponse)
	if !ok {
		t.Fatalf("decoded body type = %T, want *protocol.ApiVersionsResponse", decoded)
	}
	if len(resp.Versions) == 0 || resp.Versions[0] != DefaultAPIVersions()[0] {
		t.Fatalf("Versions = %+v, want the canned DefaultAPIVersions() set", resp.Versions)
	}

	if fc.backend != nil {
		t.Fatal("no backend connection should have been opened for an offloaded ApiVersions request")
	}
	if fc.state.State() != StateAPIVersions {
		t.Fatalf("state = %s, want API_VERSIONS (still available to select the upstream on the next request)", fc.state.State())
	}

	clientSide.Close()
	<-done
}

// capturingNetFilter records the NetFilterContext it was called with, then
// delegates to an embedded StaticNetFilter to actually pick a server.
type capturingNetFilter struct {
	*netfilter.StaticNetFilter
	captured netfilter.NetFilterContext
}

func (f *capturingNetFilter) SelectServer(ctx context.Context, nctx netfilter.NetFilterContext) (*netfilter.VirtualCluster, netfilter.HostPort, error) {
	f.captured = nctx
	return f.StaticNetFilter.SelectServer(ctx, nctx)
}

// TestFrontendConnExposesHAProxySourceToNetFilter covers spec.md §6's
// HAProxy paragraph: the original client address/port extracted from a
// PROXY protocol preamble must reach NetFilter.SelectServer as
// ClientHost/ClientPort, not the load balancer's own socket address.
func TestFrontendConnExposesHAProxySourceToNetFilter(t *testing.T) {
	clientSide, proxyClientSide := net.Pipe()
	proxyBrokerSide, brokerSide := net.Pipe()
	defer clientSide.Close()
	defer brokerSide.Close()

	cluster := &netfilter.VirtualCluster{
		Name:             "test-cluster",
		BootstrapServers: []netfilter.HostPort{{Host: "broker", Port: 9092}},
	}
	nf := &capturingNetFilter{StaticNetFilter: netfilter.NewStaticNetFilter(cluster)}
	factory := &filterchain.Factory{}

	fc := NewFrontendConn(proxyClientSide, nf, factory, 2*time.Second, false, pipeDialer{proxyBrokerSide}.dial, nil)

	done := make(chan error, 1)
	go func() { done <- fc.Serve(context.Background()) }()

	if _, err := clientSide.Write([]byte("PROXY TCP4 203.0.113.7 198.51.100.1 28017 9092\r\n")); err != nil {
		t.Fatalf("write HAProxy preamble: %v", err)
	}

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyMetadata, APIVersion: 0, CorrelationID: 1}
	payload, err := protocol.EncodeRequest(header, &protocol.MetadataRequest{})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if err := protocol.WriteFrame(clientSide, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if _, err := protocol.ReadFrame(brokerSide); err != nil {
		t.Fatalf("broker ReadFrame: %v", err)
	}

	if nf.captured == nil {
		t.Fatal("SelectServer was never called")
	}
	if got := nf.captured.ClientHost(); got != "203.0.113.7" {
		t.Fatalf("ClientHost() = %q, want the PROXY source address 203.0.113.7", got)
	}
	if got := nf.captured.ClientPort(); got != 28017 {
		t.Fatalf("ClientPort() = %d, want the PROXY source port 28017", got)
	}

	clientSide.Close()
	brokerSide.Close()
	<-done
}
