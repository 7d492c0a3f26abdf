// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packetcache

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/broadcast"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

// Feeder is the single writer of a cache: it drains the data-packet
// broadcast and inserts every packet. Protocol errors are logged and the
// offending message skipped; the loop only exits on Stop.
type Feeder struct {
	cache   *Cache
	sub     *broadcast.DataPacketSubscriber
	log     zerolog.Logger
	stopped atomic.Bool
	wg      sync.WaitGroup
}

func NewFeeder(cache *Cache, sub *broadcast.DataPacketSubscriber, log zerolog.Logger) *Feeder {
	return &Feeder{
		cache: cache,
		sub:   sub,
		log:   log.With().Str("component", "cacheFeeder").Logger(),
	}
}

// Start launches the drain loop.
func (f *Feeder) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for !f.stopped.Load() {
			p, err := f.sub.Receive()
			if err != nil {
				if errors.Is(err, transport.ErrProtocol) {
					f.log.Warn().Err(err).Msg("skipping foreign message")
					continue
				}
				f.log.Warn().Err(err).Msg("receive failed")
				continue
			}
			if p == nil {
				continue
			}
			if err := f.cache.Put(p); err != nil {
				f.log.Warn().Err(err).Str("channel", p.ChannelID.String()).
					Msg("rejected packet")
			}
		}
	}()
}

// Stop halts the loop within one polling interval and waits for it.
func (f *Feeder) Stop() {
	f.stopped.Store(true)
	f.wg.Wait()
}
