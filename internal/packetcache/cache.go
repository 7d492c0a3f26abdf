// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package packetcache keeps the most recent waveform packets of every
// channel in memory and serves raw and interpolated extractions to the
// inference services. Each channel owns a bounded, time-ordered ring;
// eviction removes the oldest packet once the ring is full. The cache is
// fed by a single broadcast subscriber and read by many workers.
package packetcache

import (
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// DefaultMaxPackets bounds each channel ring.
const DefaultMaxPackets = 300

// Inter-packet gaps wider than this many nominal sample periods are
// zero-filled and reported.
const gapFactor = 1.5

var (
	ErrChannelUnknown = errors.New("channel not in cache")
	ErrWindowEmpty    = errors.New("no packets intersect the query window")
)

var (
	packetsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sfb", Subsystem: "packetcache", Name: "packets_ingested_total",
		Help: "Packets accepted into the cache.",
	})
	packetsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sfb", Subsystem: "packetcache", Name: "packets_evicted_total",
		Help: "Packets evicted because a ring was full.",
	})
	packetsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sfb", Subsystem: "packetcache", Name: "packets_expired_total",
		Help: "Packets dropped for arriving behind the ring horizon.",
	})
	cacheQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sfb", Subsystem: "packetcache", Name: "queries_total",
		Help: "Extraction queries served, by kind.",
	}, []string{"kind"})
)

// Gap marks a zero-filled span in an interpolated extraction, in
// microseconds since the epoch.
type Gap struct {
	Start int64 `cbor:"Start" json:"start"`
	End   int64 `cbor:"End" json:"end"`
}

// ring is the per-channel packet store. Packets stay sorted by start time.
type ring struct {
	mu         sync.RWMutex
	packets    []*schema.DataPacket
	maxPackets int
}

// Cache is the store for all channels. A coarse lock guards the channel
// map; each ring carries its own shared-exclusive lock so readers of one
// channel never contend with writers of another.
type Cache struct {
	mu         sync.RWMutex
	channels   map[string]*ring
	maxPackets int
}

func New(maxPackets int) *Cache {
	if maxPackets <= 0 {
		maxPackets = DefaultMaxPackets
	}
	return &Cache{
		channels:   make(map[string]*ring),
		maxPackets: maxPackets,
	}
}

func (c *Cache) channel(name string, create bool) *ring {
	c.mu.RLock()
	r := c.channels[name]
	c.mu.RUnlock()
	if r != nil || !create {
		return r
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r = c.channels[name]; r == nil {
		r = &ring{maxPackets: c.maxPackets}
		c.channels[name] = r
	}
	return r
}

// Put inserts one packet into its channel ring. Duplicates (same start,
// rate, and length) are dropped idempotently; late packets are inserted at
// their time position, except that a full ring silently drops packets
// older than its minimum; eviction removes strictly the oldest.
func (c *Cache) Put(p *schema.DataPacket) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r := c.channel(p.ChannelID.String(), true)

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := slices.BinarySearchFunc(r.packets, p,
		func(a, b *schema.DataPacket) int {
			switch {
			case a.StartTime < b.StartTime:
				return -1
			case a.StartTime > b.StartTime:
				return 1
			}
			return 0
		})
	if ok {
		dup := r.packets[idx]
		if math.Abs(dup.SamplingRate-p.SamplingRate) < schema.SamplingRateTolerance &&
			len(dup.Samples) == len(p.Samples) {
			return nil
		}
	}
	if len(r.packets) >= r.maxPackets && p.StartTime < r.packets[0].StartTime {
		packetsExpired.Inc()
		return nil
	}

	r.packets = slices.Insert(r.packets, idx, p)
	packetsIngested.Inc()
	if len(r.packets) > r.maxPackets {
		r.packets = slices.Delete(r.packets, 0, 1)
		packetsEvicted.Inc()
	}
	return nil
}

// List enumerates every channel currently held.
func (c *Cache) List() []schema.ChannelID {
	c.mu.RLock()
	names := make([]string, 0, len(c.channels))
	for name := range c.channels {
		names = append(names, name)
	}
	c.mu.RUnlock()

	slices.Sort(names)
	ids := make([]schema.ChannelID, 0, len(names))
	for _, name := range names {
		if id, err := schema.ParseChannelID(name); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// TotalPackets reports the packet count across all rings.
func (c *Cache) TotalPackets() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, r := range c.channels {
		r.mu.RLock()
		n += len(r.packets)
		r.mu.RUnlock()
	}
	return n
}

// snapshot returns the packets of one channel intersecting [t0,t1].
func (c *Cache) snapshot(channel string, t0, t1 int64) ([]*schema.DataPacket, error) {
	r := c.channel(channel, false)
	if r == nil {
		return nil, ErrChannelUnknown
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []*schema.DataPacket
	for _, p := range r.packets {
		if p.EndTime() < t0 {
			continue
		}
		if p.StartTime > t1 {
			break
		}
		hits = append(hits, p)
	}
	if len(hits) == 0 {
		return nil, ErrWindowEmpty
	}
	return hits, nil
}

// Get returns the raw packets whose extent intersects [t0,t1], trimmed at
// the window boundaries. The returned packets are copies; the cache keeps
// ownership of everything inside its horizon.
func (c *Cache) Get(channel string, t0, t1 int64) ([]*schema.DataPacket, error) {
	cacheQueries.WithLabelValues("raw").Inc()
	hits, err := c.snapshot(channel, t0, t1)
	if err != nil {
		return nil, err
	}

	out := make([]*schema.DataPacket, 0, len(hits))
	for _, p := range hits {
		trimmed := trimPacket(p, t0, t1)
		if trimmed != nil {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, ErrWindowEmpty
	}
	return out, nil
}

// trimPacket copies the samples of p whose times fall inside [t0,t1].
func trimPacket(p *schema.DataPacket, t0, t1 int64) *schema.DataPacket {
	periodMuS := 1e6 / p.SamplingRate
	first := 0
	if t0 > p.StartTime {
		first = int(math.Ceil(float64(t0-p.StartTime) / periodMuS))
	}
	last := len(p.Samples) - 1
	if t1 < p.EndTime() {
		last = int(math.Floor(float64(t1-p.StartTime) / periodMuS))
	}
	if first > last || first >= len(p.Samples) {
		return nil
	}
	q := *p
	q.StartTime = p.StartTime + int64(math.Round(float64(first)*periodMuS))
	q.Samples = slices.Clone(p.Samples[first : last+1])
	return &q
}
