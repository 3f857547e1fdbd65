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
	"sync"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// DefaultAPIVersions returns the api key/version ranges this proxy itself
// understands. It backs the cached ApiVersions response an authentication
// offload layer can hand straight to the client before a backend
// connection even exists, mirroring the static ApiVersions-*.json resource
// the original loads at class-init time. Computed once, lazily, the first
// time any connection needs it.
var DefaultAPIVersions = sync.OnceValue(func() []protocol.ApiVersion {
	return []protocol.ApiVersion{
		{APIKey: protocol.APIKeyProduce, MinVersion: 0, MaxVersion: 9},
		{APIKey: protocol.APIKeyFetch, MinVersion: 0, MaxVersion: 13},
		{APIKey: protocol.APIKeyMetadata, MinVersion: 0, MaxVersion: 12},
		{APIKey: protocol.APIKeyCreateTopics, MinVersion: 0, MaxVersion: 7},
		{APIKey: protocol.APIKeyApiVersions, MinVersion: 0, MaxVersion: 3},
	}
})
