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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines the proxy's configuration schema.
type Config struct {
	VirtualClusters []VirtualClusterConfig `yaml:"virtual_clusters"`
	Filters         []FilterConfig         `yaml:"filters"`
	Admin           AdminConfig            `yaml:"admin"`
	Proxy           ProxyConfig            `yaml:"proxy"`
}

// VirtualClusterConfig describes one listener and the broker cluster it
// fronts.
type VirtualClusterConfig struct {
	Name             string     `yaml:"name"`
	Listen           string     `yaml:"listen"`
	BootstrapServers []string   `yaml:"bootstrap_servers"`
	TLS              *TLSConfig `yaml:"tls"`
	LogFrames        bool       `yaml:"log_frames"`
	LogNetwork       bool       `yaml:"log_network"`
}

type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// FilterConfig names one entry of the filter chain and its own
// configuration, opaque to this package.
type FilterConfig struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

type AdminConfig struct {
	MetricsListen string `yaml:"metrics_listen"`
}

type ProxyConfig struct {
	FilterHookTimeoutSeconds int `yaml:"filter_hook_timeout_seconds"`
	MaxFrameLengthBytes      int `yaml:"max_frame_length_bytes"`
	AcceptQueueSize          int `yaml:"accept_queue_size"`
	// ApiVersionsOffloadEnabled answers a client's ApiVersions request
	// with the proxy's own cached capability set instead of forwarding it
	// to a broker, skipping the upstream connect entirely for that
	// exchange.
	ApiVersionsOffloadEnabled bool `yaml:"api_versions_offload_enabled"`
}

// Load reads and validates a config file, applying defaults and then
// environment overrides (which take precedence over both the file and the
// defaults).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if len(cfg.VirtualClusters) == 0 {
		return Config{}, fmt.Errorf("at least one virtual_clusters entry is required")
	}
	for _, vc := range cfg.VirtualClusters {
		if vc.Name == "" {
			return Config{}, fmt.Errorf("virtual cluster missing name")
		}
		if vc.Listen == "" {
			return Config{}, fmt.Errorf("virtual cluster %q missing listen address", vc.Name)
		}
		if len(vc.BootstrapServers) == 0 {
			return Config{}, fmt.Errorf("virtual cluster %q missing bootstrap_servers", vc.Name)
		}
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Admin.MetricsListen == "" {
		cfg.Admin.MetricsListen = ":9644"
	}
	if cfg.Proxy.FilterHookTimeoutSeconds == 0 {
		cfg.Proxy.FilterHookTimeoutSeconds = 20
	}
	if cfg.Proxy.MaxFrameLengthBytes == 0 {
		cfg.Proxy.MaxFrameLengthBytes = 100 * 1024 * 1024
	}
	if cfg.Proxy.AcceptQueueSize == 0 {
		cfg.Proxy.AcceptQueueSize = 1024
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Admin.MetricsListen, "KROXYLITE_ADMIN_METRICS_LISTEN")
	setInt(&cfg.Proxy.FilterHookTimeoutSeconds, "KROXYLITE_FILTER_HOOK_TIMEOUT_SECONDS")
	setInt(&cfg.Proxy.MaxFrameLengthBytes, "KROXYLITE_MAX_FRAME_LENGTH_BYTES")
	setInt(&cfg.Proxy.AcceptQueueSize, "KROXYLITE_ACCEPT_QUEUE_SIZE")
	setBool(&cfg.Proxy.ApiVersionsOffloadEnabled, "KROXYLITE_API_VERSIONS_OFFLOAD_ENABLED")

	if len(cfg.VirtualClusters) == 1 {
		setString(&cfg.VirtualClusters[0].Listen, "KROXYLITE_LISTEN")
		setCSV(&cfg.VirtualClusters[0].BootstrapServers, "KROXYLITE_BOOTSTRAP_SERVERS")
	}
}

func setString(target *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*target = val
	}
}

func setInt(target *int, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		parsed, err := strconv.Atoi(val)
		if err == nil {
			*target = parsed
		}
	}
}

func setBool(target *bool, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		parsed, err := strconv.ParseBool(val)
		if err == nil {
			*target = parsed
		}
	}
}

func setCSV(target *[]string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			*target = out
		}
	}
}
