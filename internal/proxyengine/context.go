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
	"fmt"

	"github.com/novatechflow/kroxylite/internal/filterapi"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// connFilterContext is the FilterContext implementation handed to every
// filter hook invocation on one connection. It is a thin read-only view
// over FrontendConn plus the connection's BackendConn, constructed once
// the backend connection exists (filters only ever run after that point).
type connFilterContext struct {
	front   *FrontendConn
	backend *BackendConn
}

func (c *connFilterContext) ChannelDescriptor() string {
	local := "?"
	remote := "?"
	if c.front.conn != nil {
		local = c.front.conn.LocalAddr().String()
		remote = c.front.conn.RemoteAddr().String()
	}
	return fmt.Sprintf("%s<->%s", remote, local)
}

func (c *connFilterContext) SNIHostname() (string, bool) {
	return c.front.state.SNIHostname()
}

func (c *connFilterContext) SrcAddress() string {
	return c.front.conn.RemoteAddr().String()
}

func (c *connFilterContext) LocalAddress() string {
	return c.front.conn.LocalAddr().String()
}

func (c *connFilterContext) ClientHost() string {
	host, _ := c.front.clientHostPort()
	return host
}

func (c *connFilterContext) ClientPort() int {
	_, port := c.front.clientHostPort()
	return port
}

func (c *connFilterContext) ClientSoftwareName() string {
	name, _ := c.front.state.ClientSoftware()
	return name
}

func (c *connFilterContext) ClientSoftwareVersion() string {
	_, version := c.front.state.ClientSoftware()
	return version
}

func (c *connFilterContext) AuthorizedID() (string, bool) {
	return c.front.state.AuthorizedID()
}

func (c *connFilterContext) VirtualClusterName() string {
	if c.front.virtualCluster == nil {
		return ""
	}
	return c.front.virtualCluster.Name
}

func (c *connFilterContext) AllocateByteBuffer(initialCapacity int) []byte {
	return make([]byte, 0, initialCapacity)
}

func (c *connFilterContext) ForwardRequest(f frame.RequestFrame) *filterapi.RequestResult {
	return filterapi.ForwardRequest(f)
}

func (c *connFilterContext) ForwardResponse(f frame.ResponseFrame) *filterapi.ResponseResult {
	return filterapi.ForwardResponse(f)
}

func (c *connFilterContext) SendRequest(ctx context.Context, apiVersion int16, req protocol.Request) (any, error) {
	return c.backend.SendRequest(ctx, apiVersion, req)
}
