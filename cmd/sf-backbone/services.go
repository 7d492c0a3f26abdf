// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SeisFab/sf-backbone/internal/broadcast"
	"github.com/SeisFab/sf-backbone/internal/config"
	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/packetcache"
	"github.com/SeisFab/sf-backbone/internal/repository"
	"github.com/SeisFab/sf-backbone/internal/services/associator"
	"github.com/SeisFab/sf-backbone/internal/services/detector"
	"github.com/SeisFab/sf-backbone/internal/services/firstmotion"
	"github.com/SeisFab/sf-backbone/internal/services/incrementer"
	"github.com/SeisFab/sf-backbone/internal/services/locator"
	"github.com/SeisFab/sf-backbone/internal/services/picker"
	"github.com/SeisFab/sf-backbone/internal/services/traveltime"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

func newPacketCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "packetcache",
		Short: "Run the waveform packet cache service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "packetCache").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, "packetCache")
			ctx := newTransportContext(log)

			cache := packetcache.New(sec.Int("maxPackets", packetcache.DefaultMaxPackets))

			// The single cache writer drains the data broadcast.
			dataAddr, err := sec.Require("dataBroadcastAddress")
			if err != nil {
				log.Error().Err(err).Msg("packet cache needs dataBroadcastAddress")
				os.Exit(exitConfigError)
			}
			sub := broadcast.NewDataPacketSubscriber(ctx, log)
			if err := sub.Initialize(transport.Options{Address: dataAddr}); err != nil {
				log.Error().Err(err).Msg("broadcast subscriber failed")
				os.Exit(exitInitError)
			}
			defer sub.Close()
			feeder := packetcache.NewFeeder(cache, sub, log)
			feeder.Start()
			defer feeder.Stop()

			svc := packetcache.NewService(cache, log)
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
}

// modelOptions reads the shared ML service keys.
func modelOptions(sec *config.Section, log zerolog.Logger) inference.Options {
	device, err := inference.ParseDevice(sec.String("device", "CPU"))
	if err != nil {
		log.Error().Err(err).Msg("bad device")
		os.Exit(exitConfigError)
	}
	return inference.Options{
		WeightsFile: sec.String("modelWeightsFile", ""),
		Device:      device,
	}
}

func newDetectorCommand() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "detector",
		Short: "Run a phase detector inference service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "detector").Logger()
			var v detector.Variant
			switch variant {
			case "oneComponentP":
				v = detector.OneComponentP
			case "threeComponentP":
				v = detector.ThreeComponentP
			case "threeComponentS":
				v = detector.ThreeComponentS
			default:
				log.Error().Str("variant", variant).Msg("unknown detector variant")
				os.Exit(exitConfigError)
			}
			cfg := loadConfig(log)
			sec := section(cfg, log, v.String())
			ctx := newTransportContext(log)

			svc, err := detector.NewService(v, modelOptions(sec, log), log)
			if err != nil {
				log.Error().Err(err).Msg("model failed")
				os.Exit(exitInitError)
			}
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "threeComponentP",
		"detector variant: oneComponentP, threeComponentP, threeComponentS")
	return cmd
}

func newPickerCommand() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "picker",
		Short: "Run an onset refinement (picker) inference service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "picker").Logger()
			var v picker.Variant
			switch variant {
			case "oneComponentP":
				v = picker.OneComponentP
			case "threeComponentP":
				v = picker.ThreeComponentP
			case "threeComponentS":
				v = picker.ThreeComponentS
			default:
				log.Error().Str("variant", variant).Msg("unknown picker variant")
				os.Exit(exitConfigError)
			}
			cfg := loadConfig(log)
			sec := section(cfg, log, v.String())
			ctx := newTransportContext(log)

			svc, err := picker.NewService(v, modelOptions(sec, log), log)
			if err != nil {
				log.Error().Err(err).Msg("model failed")
				os.Exit(exitInitError)
			}
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "oneComponentP",
		"picker variant: oneComponentP, threeComponentP, threeComponentS")
	return cmd
}

func newFirstMotionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "firstmotion",
		Short: "Run the first-motion classifier service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "firstMotion").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, firstmotion.ServiceName)
			ctx := newTransportContext(log)

			svc, err := firstmotion.NewService(modelOptions(sec, log), log)
			if err != nil {
				log.Error().Err(err).Msg("model failed")
				os.Exit(exitInitError)
			}
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
}

func velocityModel(sec *config.Section) traveltime.VelocityModel {
	defaults := traveltime.DefaultVelocityModel()
	return traveltime.VelocityModel{
		PVelocity: sec.Float("pVelocity", defaults.PVelocity),
		SVelocity: sec.Float("sVelocity", defaults.SVelocity),
	}
}

func newLocatorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locator",
		Short: "Run the uLocator hypocenter service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "locator").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, locator.ServiceName)
			ctx := newTransportContext(log)

			dbPath, err := sec.Require("stationFile")
			if err != nil {
				log.Error().Err(err).Msg("locator needs stationFile")
				os.Exit(exitConfigError)
			}
			conn, err := repository.Connect(dbPath)
			if err != nil {
				log.Error().Err(err).Msg("station database failed")
				os.Exit(exitInitError)
			}
			defer conn.Close()
			stations, err := repository.LoadStations(conn)
			if err != nil {
				log.Error().Err(err).Msg("station load failed")
				os.Exit(exitInitError)
			}

			calc := traveltime.NewCalculator(velocityModel(sec))
			svc := locator.NewService(calc, stations, log)
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
}

func newAssociatorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "associator",
		Short: "Run the mAssociate pick association service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "associator").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, associator.ServiceName)
			ctx := newTransportContext(log)

			svc := associator.NewService(associator.Options{
				Window:      sec.Float("associationWindow", 0),
				MinArrivals: sec.Int("minimumArrivals", 0),
				MinStations: sec.Int("minimumStations", 0),
			}, log)
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
}

func newTravelTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "traveltime",
		Short: "Run the travel-time table service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "travelTime").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, traveltime.ServiceName)
			ctx := newTransportContext(log)

			svc := traveltime.NewService(velocityModel(sec), log)
			if code := runHarness(ctx, log, sec, svc, nil); code != exitOK {
				os.Exit(code)
			}
		},
	}
}

func newIncrementerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "incrementer",
		Short: "Run the standalone identifier service",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "incrementer").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, incrementer.ServiceName)
			ctx := newTransportContext(log)

			path := sec.String("sqlite3File", "var/incrementer.sqlite3")
			if sec.Bool("deleteIfExists", false) {
				os.Remove(path)
			}
			conn, err := repository.Connect(path)
			if err != nil {
				log.Error().Err(err).Msg("identifier store failed")
				os.Exit(exitInitError)
			}
			defer conn.Close()
			store, err := repository.NewCounterStore(conn,
				sec.Int64("initialValue", 0), sec.Int64("increment", 1))
			if err != nil {
				log.Error().Err(err).Msg("identifier store failed")
				os.Exit(exitInitError)
			}

			svc := incrementer.NewService(store, log)
			if code := runHarness(ctx, log, sec, svc, svc.Healthy); code != exitOK {
				os.Exit(code)
			}
		},
	}
}
