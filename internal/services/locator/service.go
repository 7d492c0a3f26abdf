// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package locator implements the uLocator hypocenter service. Input is an
// origin carrying arrivals (optionally with a seed hypocenter as a hint);
// output is the located origin with weighted RMS residual, azimuthal gap,
// and nearest-station distance. Arrival sets that violate causal ordering
// or carry duplicate phases are rejected before any numeric work.
package locator

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/geo"
	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/services/traveltime"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the logical discovery name.
const ServiceName = "uLocator"

// StationDirectory resolves station coordinates. Implementations are
// read-only; the relational metadata source behind it is out of scope.
type StationDirectory interface {
	Lookup(network, station string) (geo.Point, bool)
}

// Request asks for a hypocenter. The embedded origin needs arrivals only;
// a present hypocenter is used as the starting model.
type Request struct {
	Origin  schema.Origin `cbor:"Origin"`
	HasSeed bool          `cbor:"HaveInitialGuess,omitempty"`
	// FixDepthToFreeSurface holds the depth at the free surface.
	FixDepthToFreeSurface bool   `cbor:"FixDepthToFreeSurface,omitempty"`
	Identifier            uint64 `cbor:"Identifier"`
}

func (*Request) TypeTag() string { return "sfb.locators.uLocator.request" }
func (*Request) Version() string { return "1.0.0" }

func (r *Request) NewEmpty() schema.Message { return &Request{} }

func (r *Request) Clone() schema.Message {
	q := *r
	q.Origin = *r.Origin.Clone().(*schema.Origin)
	return &q
}

// Response carries the located origin.
type Response struct {
	Origin     schema.Origin      `cbor:"Origin"`
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*Response) TypeTag() string { return "sfb.locators.uLocator.response" }
func (*Response) Version() string { return "1.0.0" }

func (r *Response) NewEmpty() schema.Message { return &Response{} }

func (r *Response) Clone() schema.Message {
	q := *r
	q.Origin = *r.Origin.Clone().(*schema.Origin)
	return &q
}

// Service runs the locator on the worker harness.
type Service struct {
	calc     *traveltime.Calculator
	stations StationDirectory
	log      zerolog.Logger
	types    *message.Registry
}

func NewService(calc *traveltime.Calculator, stations StationDirectory, log zerolog.Logger) *Service {
	return &Service{
		calc:     calc,
		stations: stations,
		log:      log.With().Str("service", ServiceName).Logger(),
		types:    message.NewRegistry(&Request{}),
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

	if len(r.Origin.Arrivals) == 0 {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	if err := schema.ValidateArrivalSet(r.Origin.Arrivals); err != nil {
		s.log.Warn().Err(err).Msg("rejecting arrival set")
		resp.ReturnCode = service.InvalidMessage
		return resp
	}

	// The solve runs in seconds relative to the earliest arrival to keep
	// the arithmetic well conditioned.
	reference := r.Origin.Arrivals[0].Time
	for i := range r.Origin.Arrivals {
		if t := r.Origin.Arrivals[i].Time; t < reference {
			reference = t
		}
	}

	obs := make([]observation, 0, len(r.Origin.Arrivals))
	for i := range r.Origin.Arrivals {
		a := &r.Origin.Arrivals[i]
		pt, found := s.stations.Lookup(a.Network, a.Station)
		if !found {
			s.log.Warn().Str("station", a.Network+"."+a.Station).
				Msg("station not in directory")
			resp.ReturnCode = service.InvalidMessage
			return resp
		}
		stderr := a.StandardError
		if stderr <= 0 {
			stderr = schema.DefaultStandardError
		}
		obs = append(obs, observation{
			station: pt,
			phase:   a.Phase,
			timeSec: float64(a.Time-reference) / 1e6,
			weight:  1 / stderr,
		})
	}
	if len(obs) < 3 {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}

	var seed *solution
	if r.HasSeed {
		seed = &solution{
			latitude:  r.Origin.Latitude,
			longitude: schema.NormalizeLongitude180(r.Origin.Longitude),
			depth:     r.Origin.Depth,
			timeSec:   float64(r.Origin.Time-reference) / 1e6,
		}
	}

	located, err := locate(s.calc, obs, seed, r.FixDepthToFreeSurface)
	if err != nil {
		s.log.Warn().Err(err).Msg("solve failed")
		resp.ReturnCode = service.AlgorithmFailure
		return resp
	}

	out := *r.Origin.Clone().(*schema.Origin)
	out.Latitude = located.latitude
	out.Longitude = schema.NormalizeLongitude180(located.longitude)
	out.Depth = located.depth
	out.Time = reference + int64(math.Round(located.timeSec*1e6))
	out.DepthFixedToFreeSurface = r.FixDepthToFreeSurface
	rms := located.weightedRMS
	gap := located.azimuthalGap
	nearest := located.nearestDistance
	out.WeightedRMS = &rms
	out.AzimuthalGap = &gap
	out.NearestDistance = &nearest

	// Predicted travel times ride along on the defining arrivals.
	for i := range out.Arrivals {
		a := &out.Arrivals[i]
		if pt, found := s.stations.Lookup(a.Network, a.Station); found {
			tt := s.calc.Compute(out.Latitude, out.Longitude, out.Depth, pt, a.Phase)
			a.TravelTime = &tt
		}
	}

	resp.Origin = out
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &Response{ReturnCode: service.InvalidMessage}
}
