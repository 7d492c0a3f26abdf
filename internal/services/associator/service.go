// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package associator implements the mAssociate batch service: a bag of
// picks in, candidate origins out. Every call is pure; the associator
// holds no state between requests, so identical batches always produce
// identical candidates.
//
// The clustering is deliberately simple: picks are nucleated in time
// order into windows compatible with a regional event, one arrival per
// station and phase (the strongest detector posterior wins), and a
// candidate is emitted once enough distinct stations participate.
package associator

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the logical discovery name.
const ServiceName = "mAssociate"

// Association policy defaults.
const (
	// DefaultWindow is the maximum pick spread of one candidate event,
	// generous enough for S arrivals across a regional network.
	DefaultWindow = 45.0 // seconds
	// DefaultMinArrivals is the smallest defining arrival set.
	DefaultMinArrivals = 4
	// DefaultMinStations is the smallest distinct station count.
	DefaultMinStations = 3
)

// Options tune the clustering policy.
type Options struct {
	Window      float64
	MinArrivals int
	MinStations int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MinArrivals <= 0 {
		o.MinArrivals = DefaultMinArrivals
	}
	if o.MinStations <= 0 {
		o.MinStations = DefaultMinStations
	}
	return o
}

// Request is one batch of picks to associate.
type Request struct {
	Picks      []schema.Pick `cbor:"Picks"`
	Identifier uint64        `cbor:"Identifier"`
}

func (*Request) TypeTag() string { return "sfb.associators.mAssociate.request" }
func (*Request) Version() string { return "1.0.0" }

func (r *Request) NewEmpty() schema.Message { return &Request{} }

func (r *Request) Clone() schema.Message {
	q := *r
	q.Picks = make([]schema.Pick, len(r.Picks))
	for i := range r.Picks {
		q.Picks[i] = *r.Picks[i].Clone().(*schema.Pick)
	}
	return &q
}

// Response carries the candidate origins plus the picks that did not make
// it into any candidate.
type Response struct {
	Origins            []schema.Origin    `cbor:"Origins"`
	UnassociatedPicks  []uint64           `cbor:"UnassociatedPicks,omitempty"`
	Identifier         uint64             `cbor:"Identifier"`
	ReturnCode         service.ReturnCode `cbor:"ReturnCode"`
}

func (*Response) TypeTag() string { return "sfb.associators.mAssociate.response" }
func (*Response) Version() string { return "1.0.0" }

func (r *Response) NewEmpty() schema.Message { return &Response{} }

func (r *Response) Clone() schema.Message {
	q := *r
	q.Origins = make([]schema.Origin, len(r.Origins))
	for i := range r.Origins {
		q.Origins[i] = *r.Origins[i].Clone().(*schema.Origin)
	}
	q.UnassociatedPicks = slices.Clone(r.UnassociatedPicks)
	return &q
}

// Service runs the associator on the worker harness.
type Service struct {
	opts  Options
	log   zerolog.Logger
	types *message.Registry
}

func NewService(opts Options, log zerolog.Logger) *Service {
	return &Service{
		opts:  opts.withDefaults(),
		log:   log.With().Str("service", ServiceName).Logger(),
		types: message.NewRegistry(&Request{}),
	}
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) RequestTypes() *message.Registry { return s.types }

func (s *Service) Handle(req schema.Message) schema.Message {
	r, ok := req.(*Request)
	if !ok {
		return &Response{ReturnCode: service.InvalidMessage}
	}
	resp := &Response{Identifier: r.Identifier}
	for i := range r.Picks {
		if err := r.Picks[i].Validate(); err != nil {
			s.log.Warn().Err(err).Uint64("pick", r.Picks[i].Identifier).
				Msg("rejecting batch")
			resp.ReturnCode = service.InvalidMessage
			return resp
		}
	}
	resp.Origins, resp.UnassociatedPicks = Associate(r.Picks, s.opts)
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &Response{ReturnCode: service.InvalidMessage}
}

// Associate clusters picks into candidate origins. Origins come out
// ordered by origin time; each references its defining picks through the
// arrival PickIdentifier fields.
func Associate(picks []schema.Pick, opts Options) ([]schema.Origin, []uint64) {
	opts = opts.withDefaults()
	windowMuS := int64(opts.Window * 1e6)

	sorted := make([]*schema.Pick, len(picks))
	for i := range picks {
		sorted[i] = &picks[i]
	}
	slices.SortStableFunc(sorted, func(a, b *schema.Pick) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})

	var origins []schema.Origin
	var orphans []uint64
	used := make(map[uint64]bool, len(picks))

	for i := 0; i < len(sorted); i++ {
		root := sorted[i]
		if used[root.Identifier] {
			continue
		}

		// One slot per (station, phase); the strongest posterior wins.
		type slotKey struct {
			network, station string
			phase            schema.Phase
		}
		slots := make(map[slotKey]*schema.Pick)
		for j := i; j < len(sorted); j++ {
			p := sorted[j]
			if used[p.Identifier] || p.Time-root.Time > windowMuS {
				if p.Time-root.Time > windowMuS {
					break
				}
				continue
			}
			key := slotKey{p.Network, p.Station, p.PhaseHint}
			held, ok := slots[key]
			if !ok || posterior(p) > posterior(held) {
				slots[key] = p
			}
		}

		stations := make(map[string]bool)
		members := make([]*schema.Pick, 0, len(slots))
		for key, p := range slots {
			// An S arrival may not precede its co-station P.
			if key.phase == schema.PhaseS {
				if held, ok := slots[slotKey{key.network, key.station, schema.PhaseP}]; ok &&
					p.Time < held.Time {
					continue
				}
			}
			members = append(members, p)
			stations[key.network+"."+key.station] = true
		}
		if len(members) < opts.MinArrivals || len(stations) < opts.MinStations {
			if !used[root.Identifier] {
				orphans = append(orphans, root.Identifier)
				used[root.Identifier] = true
			}
			continue
		}

		origin := schema.Origin{Time: root.Time}
		for _, p := range members {
			used[p.Identifier] = true
			origin.Arrivals = append(origin.Arrivals, schema.Arrival{
				ChannelID:      p.ChannelID,
				Time:           p.Time,
				Phase:          p.PhaseHint,
				PickIdentifier: p.Identifier,
				StandardError:  p.StandardError,
				FirstMotion:    p.FirstMotion,
				ReviewStatus:   schema.ReviewAutomatic,
			})
		}
		schema.SortArrivals(origin.Arrivals)
		origin.Time = origin.Arrivals[0].Time
		origins = append(origins, origin)
	}
	return origins, orphans
}

func posterior(p *schema.Pick) float64 {
	if p.Posterior != nil {
		return *p.Posterior
	}
	return 0
}
