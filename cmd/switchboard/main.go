// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/switchboard-dev/switchboard/lib/client"
	"github.com/switchboard-dev/switchboard/lib/policy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath string
		timeout    time.Duration
	)
	pflag.StringVar(&socketPath, "socket", "/run/switchboard/broker.sock", "broker socket path")
	pflag.DurationVar(&timeout, "timeout", 0, "how long a request may wait for a provider (0 = forever)")
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: switchboard [flags] query|request|observe|check-policy ...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(socketPath)
	switch command := args[0]; command {
	case "query":
		if len(args) != 2 {
			return fmt.Errorf("usage: switchboard query <service>")
		}
		return runQuery(ctx, c, args[1])
	case "request":
		if len(args) != 2 {
			return fmt.Errorf("usage: switchboard request <service>")
		}
		return runRequest(ctx, c, args[1], timeout)
	case "observe":
		return runObserve(ctx, c)
	case "check-policy":
		if len(args) < 2 {
			return fmt.Errorf("usage: switchboard check-policy <dir>...")
		}
		return runCheckPolicy(args[1:])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runQuery(ctx context.Context, c *client.Client, service string) error {
	state, err := c.Query(ctx, service)
	if err != nil {
		return err
	}
	if !state.Registered {
		fmt.Printf("%s: not registered\n", service)
		return nil
	}
	owner := state.Owner
	fmt.Printf("%s: registered by uid=%d pid=%d", service, owner.UID, owner.PID)
	if owner.SecurityContext != "" {
		fmt.Printf(" context=%s", owner.SecurityContext)
	}
	fmt.Println()
	return nil
}

// runRequest connects to the service and pipes stdio both ways until
// either side closes.
func runRequest(ctx context.Context, c *client.Client, service string, timeout time.Duration) error {
	conn, err := c.Request(ctx, service, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	var once sync.Once
	done := make(chan struct{})
	go func() {
		io.Copy(conn, os.Stdin)
		once.Do(func() { close(done) })
	}()
	go func() {
		io.Copy(os.Stdout, conn)
		once.Do(func() { close(done) })
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

func runObserve(ctx context.Context, c *client.Client) error {
	events, err := c.Observe(ctx)
	if err != nil {
		return err
	}
	for event := range events {
		fmt.Printf("%s %s uid=%d pid=%d\n", event.Type, event.Service, event.Peer.UID, event.Peer.PID)
	}
	return ctx.Err()
}

// runCheckPolicy loads the named directories exactly the way the
// daemon would and reports what merged.
func runCheckPolicy(dirs []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	loader := policy.NewLoader(policy.SystemResolver(), logger)

	policies := make(policy.Map)
	loadErr := loader.LoadDirectories(dirs, policies)

	fmt.Printf("%d services declared\n", len(policies))
	for name, p := range policies {
		if owner, ok := p.Owner(); ok {
			fmt.Printf("  %s: owned by %s\n", name, owner)
		} else {
			fmt.Printf("  %s: no owner declared\n", name)
		}
	}
	if loadErr != nil {
		return fmt.Errorf("policy check failed: %w", loadErr)
	}
	return nil
}
