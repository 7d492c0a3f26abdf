// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/SeisFab/sf-backbone/internal/registry"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

// The broker hosts the broadcast and service proxies plus the directory.
// Proxies come from INI sections named [broadcast:<name>] (XSUB/XPUB) and
// [service:<name>] (ROUTER/DEALER), each carrying frontend and backend
// addresses.
func newBrokerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "broker",
		Short: "Run the message broker: proxies and the service directory",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "broker").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, "broker")
			ctx := newTransportContext(log)

			var proxies []*transport.Proxy
			start := func(kind transport.ProxyKind, names []string, prefix string) {
				for _, name := range names {
					psec, err := cfg.Section(prefix + name)
					if err != nil {
						continue
					}
					frontend, err1 := psec.Require("frontend")
					backend, err2 := psec.Require("backend")
					if err1 != nil || err2 != nil {
						log.Error().Str("proxy", name).Msg("proxy needs frontend and backend")
						os.Exit(exitConfigError)
					}
					p := transport.NewProxy(ctx, log, transport.ProxyOptions{
						Kind:            kind,
						FrontendAddress: frontend,
						BackendAddress:  backend,
						FrontendHWM:     psec.Int("highWaterMark", 0),
						BackendHWM:      psec.Int("highWaterMark", 0),
					})
					if err := p.Start(); err != nil {
						log.Error().Err(err).Str("proxy", name).Msg("proxy failed")
						os.Exit(exitInitError)
					}
					proxies = append(proxies, p)
				}
			}

			broadcasts := []string{"dataPacket", "probabilityPacket", "pick", "origin"}
			services := []string{"packetCache", "uNetOneComponentP", "uNetThreeComponentP",
				"uNetThreeComponentS", "cnnOneComponentP", "cnnThreeComponentP",
				"cnnThreeComponentS", "cnnFirstMotionOneComponentP", "uLocator",
				"mAssociate", "travelTimes", "incrementer"}
			start(transport.BroadcastProxy, broadcasts, "broadcast:")
			start(transport.ServiceProxy, services, "service:")
			if len(proxies) == 0 {
				log.Error().Msg("no proxies configured")
				os.Exit(exitConfigError)
			}
			defer func() {
				for _, p := range proxies {
					p.Stop()
				}
			}()

			// The directory rides on its own replier pool next to the
			// proxies.
			directory := registry.NewDirectory(log)
			harness := service.NewHarness(ctx, log, directory)

			directoryAddr, err := sec.Require("directoryAddress")
			if err != nil {
				log.Error().Err(err).Msg("broker needs directoryAddress")
				os.Exit(exitConfigError)
			}
			err = harness.Initialize(service.Options{
				Endpoint: transport.Options{Address: directoryAddr, Bind: true},
				NThreads: sec.Int("nThreads", 1),
			})
			if err == nil {
				err = harness.Start()
			}
			if err != nil {
				log.Error().Err(err).Msg("directory failed")
				os.Exit(exitInitError)
			}
			defer harness.Stop()

			scheduler, err := gocron.NewScheduler()
			if err != nil {
				log.Error().Err(err).Msg("scheduler failed")
				os.Exit(exitInitError)
			}
			lease := sec.Milliseconds("registrationLease", registry.DefaultLease)
			scheduler.NewJob(
				gocron.DurationJob(lease/2),
				gocron.NewTask(func() { directory.Sweep(lease) }))
			scheduler.Start()
			defer scheduler.Shutdown()

			log.Info().Int("proxies", len(proxies)).
				Str("directory", directoryAddr).Msg("broker running")
			waitForSignal()
			log.Info().Msg("shutting down")
			time.Sleep(transport.DefaultPollingTimeout)
		},
	}
}
