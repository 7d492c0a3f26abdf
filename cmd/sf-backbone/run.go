// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/config"
	"github.com/SeisFab/sf-backbone/internal/registry"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}

// runHarness wires the common service runtime: worker harness, optional
// directory registration with heartbeats, and the optional ops surface.
// It blocks until shutdown and returns the exit code.
func runHarness(ctx *transport.Context, log zerolog.Logger, sec *config.Section,
	impl service.Implementation, healthy func() bool,
) int {
	endpoint, err := sec.Endpoint()
	if err != nil {
		log.Error().Err(err).Msg("bad endpoint configuration")
		return exitConfigError
	}

	harness := service.NewHarness(ctx, log, impl)
	opts := service.Options{
		Endpoint: endpoint,
		NThreads: sec.Int("nThreads", 1),
	}
	if err := harness.Initialize(opts); err != nil {
		log.Error().Err(err).Msg("initialization failed")
		return exitInitError
	}
	if err := harness.Start(); err != nil {
		log.Error().Err(err).Msg("start failed")
		return exitInitError
	}
	defer harness.Stop()

	if directoryAddr := sec.String("directoryAddress", ""); directoryAddr != "" {
		client, err := registry.NewClient(ctx, log, transport.Options{Address: directoryAddr})
		if err != nil {
			log.Error().Err(err).Msg("directory client failed")
			return exitInitError
		}
		defer client.Close()
		entry := registry.Entry{
			Name:         impl.Name(),
			Address:      endpoint.Address,
			MessageTypes: impl.RequestTypes().Tags(),
		}
		if err := client.Register(entry); err != nil {
			log.Warn().Err(err).Msg("directory registration failed")
		}
		client.StartHeartbeat(entry, registry.DefaultLease/3)
	}

	if opsAddr := sec.String("opsAddress", ""); opsAddr != "" {
		ops := service.NewOpsServer(log, opsAddr, healthy)
		ops.Start()
		defer ops.Stop()
	}

	waitForSignal()
	log.Info().Msg("shutting down")
	// Give in-flight replies one polling interval to drain.
	time.Sleep(transport.DefaultPollingTimeout)
	return exitOK
}

// newTransportContext builds the process-wide messaging context.
func newTransportContext(log zerolog.Logger) *transport.Context {
	ctx, err := transport.GlobalContext()
	if err != nil {
		log.Error().Err(err).Msg("messaging context failed")
		os.Exit(exitInitError)
	}
	return ctx
}
