// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package traveltime computes predicted phase travel times from a source
// to a station set against a preloaded regional velocity model. The
// calculator is pure; the service wraps it for the worker harness.
package traveltime

import (
	"math"
	"slices"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/geo"
	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the logical discovery name.
const ServiceName = "travelTimes"

// VelocityModel is a regional constant-velocity half-space per phase.
// Defaults approximate the intermountain west crust.
type VelocityModel struct {
	PVelocity float64 // m/s
	SVelocity float64 // m/s
}

func DefaultVelocityModel() VelocityModel {
	return VelocityModel{PVelocity: 5950, SVelocity: 3440}
}

func (m VelocityModel) velocity(phase schema.Phase) float64 {
	if phase == schema.PhaseS {
		return m.SVelocity
	}
	return m.PVelocity
}

// Calculator computes straight-ray travel times through the half-space.
type Calculator struct {
	model VelocityModel
}

func NewCalculator(model VelocityModel) *Calculator {
	if model.PVelocity <= 0 || model.SVelocity <= 0 {
		model = DefaultVelocityModel()
	}
	return &Calculator{model: model}
}

// Compute returns the travel time in seconds from the source (depth in
// meters below sea level) to the station for the given phase.
func (c *Calculator) Compute(srcLat, srcLon, srcDepth float64, station geo.Point, phase schema.Phase) float64 {
	epicentral := geo.Distance(geo.Point{Latitude: srcLat, Longitude: srcLon}, station)
	vertical := srcDepth + station.Elevation
	slant := math.Hypot(epicentral, vertical)
	return slant / c.model.velocity(phase)
}

// Station identifies one receiver in a request.
type Station struct {
	Name      string  `cbor:"Name"`
	Latitude  float64 `cbor:"Latitude"`
	Longitude float64 `cbor:"Longitude"`
	Elevation float64 `cbor:"Elevation"`
}

// Request asks for the (station, phase) travel-time table from a source.
type Request struct {
	SourceLatitude  float64   `cbor:"SourceLatitude"`
	SourceLongitude float64   `cbor:"SourceLongitude"`
	SourceDepth     float64   `cbor:"SourceDepth"`
	Stations        []Station `cbor:"Stations"`
	Identifier      uint64    `cbor:"Identifier"`
}

func (*Request) TypeTag() string { return "sfb.travelTimes.request" }
func (*Request) Version() string { return "1.0.0" }

func (r *Request) NewEmpty() schema.Message { return &Request{} }

func (r *Request) Clone() schema.Message {
	q := *r
	q.Stations = slices.Clone(r.Stations)
	return &q
}

// Entry is one row of the response table.
type Entry struct {
	Station    string       `cbor:"Station"`
	Phase      schema.Phase `cbor:"Phase"`
	TravelTime float64      `cbor:"TravelTime"`
}

// Response carries one entry per (station, phase) pair.
type Response struct {
	TravelTimes []Entry            `cbor:"TravelTimes"`
	Identifier  uint64             `cbor:"Identifier"`
	ReturnCode  service.ReturnCode `cbor:"ReturnCode"`
}

func (*Response) TypeTag() string { return "sfb.travelTimes.response" }
func (*Response) Version() string { return "1.0.0" }

func (r *Response) NewEmpty() schema.Message { return &Response{} }

func (r *Response) Clone() schema.Message {
	q := *r
	q.TravelTimes = slices.Clone(r.TravelTimes)
	return &q
}

// Service wraps the calculator for the worker harness. Computed tables
// are memoized per quantized source position.
type Service struct {
	calc   *Calculator
	tables *tableCache
	log    zerolog.Logger
	types  *message.Registry
}

func NewService(model VelocityModel, log zerolog.Logger) *Service {
	return &Service{
		calc:   NewCalculator(model),
		tables: newTableCache(0),
		log:    log.With().Str("service", ServiceName).Logger(),
		types:  message.NewRegistry(&Request{}),
	}
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) RequestTypes() *message.Registry { return s.types }

func (s *Service) Calculator() *Calculator { return s.calc }

func (s *Service) Handle(req schema.Message) schema.Message {
	r, ok := req.(*Request)
	if !ok {
		return &Response{ReturnCode: service.InvalidMessage}
	}
	resp := &Response{Identifier: r.Identifier}
	if r.SourceLatitude < -90 || r.SourceLatitude > 90 ||
		r.SourceDepth < schema.MinDepth || r.SourceDepth > schema.MaxDepth ||
		len(r.Stations) == 0 {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	lon := schema.NormalizeLongitude180(r.SourceLongitude)
	key := s.tables.key(r.SourceLatitude, lon, r.SourceDepth, r.Stations)
	resp.TravelTimes = s.tables.get(key, func() []Entry {
		table := make([]Entry, 0, 2*len(r.Stations))
		for _, st := range r.Stations {
			p := geo.Point{Latitude: st.Latitude, Longitude: st.Longitude, Elevation: st.Elevation}
			for _, phase := range []schema.Phase{schema.PhaseP, schema.PhaseS} {
				table = append(table, Entry{
					Station:    st.Name,
					Phase:      phase,
					TravelTime: s.calc.Compute(r.SourceLatitude, lon, r.SourceDepth, p, phase),
				})
			}
		}
		return table
	})
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &Response{ReturnCode: service.InvalidMessage}
}
