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

package main

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/novatechflow/kroxylite/internal/config"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnvOrDefaultFallsBackWhenUnset(t *testing.T) {
	const key = "KROXYLITE_TEST_ENV_ORDEFAULT"
	os.Unsetenv(key)
	if got := envOrDefault(key, "fallback"); got != "fallback" {
		t.Fatalf("envOrDefault() = %q, want fallback", got)
	}
	os.Setenv(key, "override")
	defer os.Unsetenv(key)
	if got := envOrDefault(key, "fallback"); got != "override" {
		t.Fatalf("envOrDefault() = %q, want override", got)
	}
}

func TestBuildListenersOneEntryPerVirtualCluster(t *testing.T) {
	cfg := config.Config{
		VirtualClusters: []config.VirtualClusterConfig{
			{Name: "prod", Listen: "127.0.0.1:0", BootstrapServers: []string{"broker-1:9092", "broker-2:9092"}},
			{Name: "staging", Listen: "127.0.0.1:0", BootstrapServers: []string{"broker-3:9092"}},
		},
	}
	listeners, err := buildListeners(cfg, discardLogger())
	if err != nil {
		t.Fatalf("buildListeners: %v", err)
	}
	if len(listeners) != 2 {
		t.Fatalf("got %d listeners, want 2", len(listeners))
	}
	if listeners[0].cluster.Name != "prod" || len(listeners[0].cluster.BootstrapServers) != 2 {
		t.Fatalf("unexpected first listener: %+v", listeners[0].cluster)
	}
	if listeners[1].cluster.Name != "staging" || len(listeners[1].cluster.BootstrapServers) != 1 {
		t.Fatalf("unexpected second listener: %+v", listeners[1].cluster)
	}
}

func TestBuildListenersRejectsMalformedBootstrapServer(t *testing.T) {
	cfg := config.Config{
		VirtualClusters: []config.VirtualClusterConfig{
			{Name: "prod", Listen: "127.0.0.1:0", BootstrapServers: []string{"not-a-host-port"}},
		},
	}
	if _, err := buildListeners(cfg, discardLogger()); err == nil {
		t.Fatal("buildListeners() with a malformed bootstrap server: want error, got nil")
	}
}

func TestBuildFilterFactoryRejectsUnknownFilterType(t *testing.T) {
	_, err := buildFilterFactory([]config.FilterConfig{{Type: "no-such-filter"}})
	if err == nil {
		t.Fatal("buildFilterFactory() with an unknown filter type: want error, got nil")
	}
}

func TestBuildFilterFactoryResolvesRegisteredFilter(t *testing.T) {
	factory, err := buildFilterFactory([]config.FilterConfig{{Type: "reject-create-topics"}})
	if err != nil {
		t.Fatalf("buildFilterFactory: %v", err)
	}
	if len(factory.Builders) != 1 {
		t.Fatalf("got %d builders, want 1", len(factory.Builders))
	}
	chain := factory.NewChain(0)
	if chain.DecodePredicate().ShouldDecode(protocol.APIKeyCreateTopics, 5) != true {
		t.Fatalf("chain with reject-create-topics filter should decode CreateTopics requests")
	}
}
