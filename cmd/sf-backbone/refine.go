// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SeisFab/sf-backbone/internal/broadcast"
	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/refine"
	"github.com/SeisFab/sf-backbone/internal/services/incrementer"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

// The refinery drains raw detector picks, assigns identifiers, refines
// onsets through the picker and first-motion services, and re-broadcasts
// the refined picks on a second address.
func newRefineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refine",
		Short: "Run the pick refinement module",
		Run: func(cmd *cobra.Command, args []string) {
			log := newLogger().With().Str("module", "pickRefinery").Logger()
			cfg := loadConfig(log)
			sec := section(cfg, log, "pickRefinery")
			ctx := newTransportContext(log)

			requireAddr := func(key string) string {
				v, err := sec.Require(key)
				if err != nil {
					log.Error().Err(err).Msg("refinery configuration incomplete")
					os.Exit(exitConfigError)
				}
				return v
			}

			sub := broadcast.NewPickSubscriber(ctx, log)
			if err := sub.Initialize(transport.Options{
				Address: requireAddr("rawPickBroadcastAddress"),
			}); err != nil {
				log.Error().Err(err).Msg("raw pick subscriber failed")
				os.Exit(exitInitError)
			}
			defer sub.Close()

			pub := broadcast.NewPickPublisher(ctx, log)
			if err := pub.Initialize(transport.Options{
				Address: requireAddr("refinedPickBroadcastAddress"),
			}); err != nil {
				log.Error().Err(err).Msg("refined pick publisher failed")
				os.Exit(exitInitError)
			}
			defer pub.Close()

			source, err := refine.NewCacheSource(ctx, log, transport.Options{
				Address: requireAddr("packetCacheAddress"),
			})
			if err != nil {
				log.Error().Err(err).Msg("cache client failed")
				os.Exit(exitInitError)
			}
			defer source.Close()

			pickerClient, err := refine.NewPickerClient(ctx, log, transport.Options{
				Address: requireAddr("pickerAddress"),
			}, inference.PickerOneComponentPLength)
			if err != nil {
				log.Error().Err(err).Msg("picker client failed")
				os.Exit(exitInitError)
			}
			defer pickerClient.Close()

			var classifier *refine.FirstMotionClient
			if addr := sec.String("firstMotionAddress", ""); addr != "" {
				classifier, err = refine.NewFirstMotionClient(ctx, log,
					transport.Options{Address: addr})
				if err != nil {
					log.Error().Err(err).Msg("first-motion client failed")
					os.Exit(exitInitError)
				}
				defer classifier.Close()
			}

			var ids *incrementer.Client
			if addr := sec.String("incrementerAddress", ""); addr != "" {
				ids, err = incrementer.NewClient(ctx, log, transport.Options{Address: addr})
				if err != nil {
					log.Error().Err(err).Msg("incrementer client failed")
					os.Exit(exitInitError)
				}
				defer ids.Close()
			}

			queue := refine.NewQueue(
				sec.Int("queueBound", refine.DefaultQueueBound),
				sec.Float("nominalSamplingRate", 100))

			worker := newRefineWorker(queue, source, pickerClient, classifier, pub, log)
			worker.Start()
			defer worker.Stop()

			var stopped atomic.Bool
			go drainRawPicks(sub, queue, ids, &stopped, log)
			defer stopped.Store(true)

			log.Info().Msg("pick refinery running")
			waitForSignal()
			log.Info().Msg("shutting down")
		},
	}
}

func newRefineWorker(queue *refine.Queue, source *refine.CacheSource,
	pickerClient *refine.PickerClient, classifier *refine.FirstMotionClient,
	pub *broadcast.PickPublisher, log zerolog.Logger,
) *refine.Worker {
	var polarity refine.PolarityClassifier
	if classifier != nil {
		polarity = classifier
	}
	return refine.NewWorker(queue, source, pickerClient, polarity, pub, 100, log)
}

// drainRawPicks moves broadcast picks onto the retry queue, assigning
// identifiers to picks that arrive without one.
func drainRawPicks(sub *broadcast.PickSubscriber, queue *refine.Queue,
	ids *incrementer.Client, stopped *atomic.Bool, log zerolog.Logger,
) {
	for !stopped.Load() {
		p, err := sub.Receive()
		if err != nil {
			log.Warn().Err(err).Msg("pick receive failed")
			continue
		}
		if p == nil {
			continue
		}
		if p.Identifier == 0 && ids != nil {
			block, err := ids.Next("pick", 1)
			if err != nil {
				log.Warn().Err(err).Msg("identifier assignment failed, dropping pick")
				continue
			}
			p.Identifier = block[0]
		}
		if err := queue.Push(*p); err != nil {
			if errors.Is(err, refine.ErrQueueFull) {
				log.Warn().Str("channel", p.ChannelID.String()).
					Msg("refinement queue full, dropping pick")
				continue
			}
			log.Warn().Err(err).Msg("enqueue failed")
		}
	}
}
