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

// Package netfilter decides, for a newly accepted client connection, which
// virtual cluster it belongs to and which broker address to dial for it.
// This is a separate concern from the Kafka-aware filter chain in
// internal/filterapi: it runs once per connection, before any frame has
// been read, and never sees message content.
package netfilter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
)

// HostPort is a resolved broker address.
type HostPort struct {
	Host string
	Port int
}

func (hp HostPort) String() string { return fmt.Sprintf("%s:%d", hp.Host, hp.Port) }

// ParseHostPort splits a "host:port" bootstrap server address as found in
// configuration into a HostPort.
func ParseHostPort(addr string) (HostPort, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return HostPort{}, fmt.Errorf("parse bootstrap server %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return HostPort{}, fmt.Errorf("parse bootstrap server %q: %w", addr, err)
	}
	return HostPort{Host: host, Port: port}, nil
}

// VirtualCluster describes one configured proxy listener: its name, the
// broker addresses behind it, and the diagnostic switches that govern how
// verbosely the frontend/backend handlers log what passes through.
type VirtualCluster struct {
	Name             string
	BootstrapServers []HostPort
	LogFrames        bool
	LogNetwork       bool
}

// NetFilterContext is the information available when a connection must be
// routed: the SNI hostname (if the connection is TLS), the raw and
// HAProxy-translated endpoints of the socket, and anything already
// established about the client (its authenticated principal and declared
// software) by the time routing runs.
type NetFilterContext interface {
	SNIHostname() (string, bool)
	LocalPort() int
	// SrcAddress is the raw TCP peer address of the socket, regardless of
	// any HAProxy PROXY protocol preamble.
	SrcAddress() string
	// LocalAddress is the raw TCP local address the connection was
	// accepted on.
	LocalAddress() string
	// ClientHost and ClientPort are the original client's address as
	// reported by a PROXY protocol preamble, falling back to the raw TCP
	// peer address when no preamble was sent.
	ClientHost() string
	ClientPort() int
	AuthorizedID() (id string, ok bool)
	ClientSoftwareName() string
	ClientSoftwareVersion() string
}

// NetFilter selects the virtual cluster and an upstream broker address for
// a newly accepted connection. SelectServer is called at most once per
// connection.
type NetFilter interface {
	SelectServer(ctx context.Context, nctx NetFilterContext) (*VirtualCluster, HostPort, error)
}

// StaticNetFilter binds one listener to one statically configured virtual
// cluster and spreads outbound connections across its bootstrap servers
// round robin.
type StaticNetFilter struct {
	Cluster   *VirtualCluster
	rrCounter uint32
}

// NewStaticNetFilter returns a StaticNetFilter bound to cluster.
func NewStaticNetFilter(cluster *VirtualCluster) *StaticNetFilter {
	return &StaticNetFilter{Cluster: cluster}
}

func (f *StaticNetFilter) SelectServer(ctx context.Context, nctx NetFilterContext) (*VirtualCluster, HostPort, error) {
	if len(f.Cluster.BootstrapServers) == 0 {
		return nil, HostPort{}, fmt.Errorf("virtual cluster %q has no bootstrap servers", f.Cluster.Name)
	}
	idx := atomic.AddUint32(&f.rrCounter, 1)
	addr := f.Cluster.BootstrapServers[int(idx)%len(f.Cluster.BootstrapServers)]
	return f.Cluster, addr, nil
}

// SNIRoutedNetFilter picks among several virtual clusters by matching the
// client's TLS SNI hostname, falling back to Default when no entry matches
// or the connection carried no SNI extension at all.
type SNIRoutedNetFilter struct {
	ByHostname map[string]*StaticNetFilter
	Default    *StaticNetFilter
}

func (f *SNIRoutedNetFilter) SelectServer(ctx context.Context, nctx NetFilterContext) (*VirtualCluster, HostPort, error) {
	if hostname, ok := nctx.SNIHostname(); ok {
		if delegate, ok := f.ByHostname[hostname]; ok {
			return delegate.SelectServer(ctx, nctx)
		}
	}
	if f.Default == nil {
		return nil, HostPort{}, fmt.Errorf("no virtual cluster matched and no default is configured")
	}
	return f.Default.SelectServer(ctx, nctx)
}
