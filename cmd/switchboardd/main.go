// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/switchboard-dev/switchboard/lib/broker"
	"github.com/switchboard-dev/switchboard/lib/clock"
	"github.com/switchboard-dev/switchboard/lib/policy"
	"github.com/switchboard-dev/switchboard/lib/server"
)

// version is stamped by the build.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "/etc/switchboard/switchboardd.yaml", "path to the daemon configuration file")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("switchboardd %s\n", version)
		return nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := config.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policies, err := loadPolicies(config, logger)
	if err != nil {
		// Per-file failures were already merged around; a partially
		// loaded policy still serves every service that did parse.
		logger.Warn("policy loading finished with errors", "error", err)
	}
	logger.Info("policy loaded", "services", len(policies), "permissive", config.Permissive)

	promRegistry := prometheus.NewRegistry()
	registry := broker.NewRegistry(policies, broker.Options{
		Permissive:         config.Permissive,
		AllowAdHocServices: config.AllowAdHocServices,
		MaxPendingRequests: config.MaxPendingRequests,
		Clock:              clock.Real(),
		Logger:             logger,
		Metrics:            broker.NewMetrics(promRegistry),
	})

	if config.MetricsAddress != "" {
		go serveMetrics(ctx, config.MetricsAddress, promRegistry, logger)
	}

	brokerServer := server.New(config.SocketPath, registry, logger)
	return brokerServer.Serve(ctx)
}

// loadPolicies merges every configured policy directory into one map.
// The optional extra directory is skipped silently when absent.
func loadPolicies(config *Config, logger *slog.Logger) (policy.Map, error) {
	dirs := append([]string{}, config.PolicyDirs...)
	if config.ExtraPolicyDir != "" {
		if _, err := os.Stat(config.ExtraPolicyDir); err == nil {
			dirs = append(dirs, config.ExtraPolicyDir)
		}
	}

	loader := policy.NewLoader(policy.SystemResolver(), logger)
	policies := make(policy.Map)
	err := loader.LoadDirectories(dirs, policies)
	return policies, err
}

// serveMetrics exposes the Prometheus registry over HTTP until ctx is
// cancelled. Metrics failures never take the broker down.
func serveMetrics(ctx context.Context, address string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "address", address)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
