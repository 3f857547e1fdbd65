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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novatechflow/kroxylite/internal/config"
	"github.com/novatechflow/kroxylite/internal/filterchain"
	"github.com/novatechflow/kroxylite/internal/filters"
	"github.com/novatechflow/kroxylite/internal/netfilter"
	"github.com/novatechflow/kroxylite/internal/proxyengine"
)

const defaultConfigFile = "kroxylite.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configFile := envOrDefault("KROXYLITE_CONFIG_FILE", defaultConfigFile)
	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("config load failed", "error", err, "file", configFile)
		os.Exit(1)
	}

	listeners, err := buildListeners(cfg, logger)
	if err != nil {
		logger.Error("listener setup failed", "error", err)
		os.Exit(1)
	}

	startAdminServer(ctx, cfg.Admin.MetricsListen, logger)

	var wg sync.WaitGroup
	for _, l := range listeners {
		l := l
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.serve(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("listener serve error", "virtual_cluster", l.cluster.Name, "error", err)
			}
		}()
	}
	wg.Wait()
}

// proxyListener binds one configured virtual cluster to a live TCP
// listener and the filter chain factory that every accepted connection's
// FrontendConn will spin up a fresh instance from.
type proxyListener struct {
	cluster            *netfilter.VirtualCluster
	netFilter          netfilter.NetFilter
	factory            *filterchain.Factory
	hookTimeout        time.Duration
	apiVersionsOffload bool
	listenAddr         string
	logger             *slog.Logger
}

func buildListeners(cfg config.Config, logger *slog.Logger) ([]*proxyListener, error) {
	factory, err := buildFilterFactory(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("build filter chain: %w", err)
	}
	hookTimeout := time.Duration(cfg.Proxy.FilterHookTimeoutSeconds) * time.Second

	listeners := make([]*proxyListener, 0, len(cfg.VirtualClusters))
	for _, vcCfg := range cfg.VirtualClusters {
		servers := make([]netfilter.HostPort, 0, len(vcCfg.BootstrapServers))
		for _, addr := range vcCfg.BootstrapServers {
			hp, err := netfilter.ParseHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("virtual cluster %q: %w", vcCfg.Name, err)
			}
			servers = append(servers, hp)
		}
		cluster := &netfilter.VirtualCluster{
			Name:             vcCfg.Name,
			BootstrapServers: servers,
			LogFrames:        vcCfg.LogFrames,
			LogNetwork:       vcCfg.LogNetwork,
		}
		listeners = append(listeners, &proxyListener{
			cluster:            cluster,
			netFilter:          netfilter.NewStaticNetFilter(cluster),
			factory:            factory,
			hookTimeout:        hookTimeout,
			apiVersionsOffload: cfg.Proxy.ApiVersionsOffloadEnabled,
			listenAddr:         vcCfg.Listen,
			logger:             logger.With("virtual_cluster", vcCfg.Name),
		})
	}
	return listeners, nil
}

func buildFilterFactory(filterCfgs []config.FilterConfig) (*filterchain.Factory, error) {
	factory := &filterchain.Factory{}
	for _, fc := range filterCfgs {
		builder, err := filters.Build(fc.Type, fc.Config)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", fc.Type, err)
		}
		factory.Builders = append(factory.Builders, builder)
	}
	return factory, nil
}

func (l *proxyListener) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.listenAddr, err)
	}
	l.logger.Info("listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				l.logger.Warn("accept timeout, retrying", "error", err)
				continue
			}
			return err
		}
		connLogger := l.logger.With("remote_addr", conn.RemoteAddr().String())
		go func() {
			fc := proxyengine.NewFrontendConn(conn, l.netFilter, l.factory, l.hookTimeout, l.apiVersionsOffload, proxyengine.DefaultDialer, connLogger)
			if err := fc.Serve(ctx); err != nil {
				connLogger.Warn("connection ended", "error", err)
			}
		}()
	}
}

func startAdminServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		logger.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("admin server error", "error", err)
		}
	}()
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
