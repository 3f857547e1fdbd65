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

package filters

import (
	"fmt"

	"github.com/novatechflow/kroxylite/internal/filterapi"
)

// Builder constructs one filter instance from its opaque configuration
// block, for every connection a Factory spins up.
type Builder func(cfg map[string]any) (func() filterapi.Filter, error)

// registry maps a configured filter's "type" string to the Builder that
// knows how to construct it. New filters register themselves here.
var registry = map[string]Builder{
	"reject-create-topics": buildRejectCreateTopics,
}

// Build resolves filterType against the registry and returns a constructor
// usable as one of filterchain.Factory.Builders.
func Build(filterType string, cfg map[string]any) (func() filterapi.Filter, error) {
	b, ok := registry[filterType]
	if !ok {
		return nil, fmt.Errorf("unknown filter type %q", filterType)
	}
	return b(cfg)
}

func buildRejectCreateTopics(cfg map[string]any) (func() filterapi.Filter, error) {
	var fc RejectCreateTopicsConfig
	if msg, ok := cfg["error_message"].(string); ok {
		fc.ErrorMessage = msg
	}
	if close, ok := cfg["close_connection"].(bool); ok {
		fc.CloseConnection = close
	}
	return func() filterapi.Filter { return NewRejectCreateTopics(fc) }, nil
}
