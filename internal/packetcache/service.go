// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packetcache

import (
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the logical discovery name of the cache service.
const ServiceName = "packetCache"

// DataRequest asks for the raw packets of one channel intersecting a
// window. Identifiers are opaque and echoed in the response.
type DataRequest struct {
	schema.ChannelID
	StartTime  int64  `cbor:"StartTime"`
	EndTime    int64  `cbor:"EndTime"`
	Identifier uint64 `cbor:"Identifier"`
}

func (*DataRequest) TypeTag() string { return "sfb.packetCache.dataRequest" }
func (*DataRequest) Version() string { return "1.0.0" }

func (r *DataRequest) NewEmpty() schema.Message { return &DataRequest{} }
func (r *DataRequest) Clone() schema.Message    { q := *r; return &q }

// DataResponse carries the trimmed packets.
type DataResponse struct {
	Packets    []schema.DataPacket `cbor:"Packets"`
	Identifier uint64              `cbor:"Identifier"`
	ReturnCode service.ReturnCode  `cbor:"ReturnCode"`
}

func (*DataResponse) TypeTag() string { return "sfb.packetCache.dataResponse" }
func (*DataResponse) Version() string { return "1.0.0" }

func (r *DataResponse) NewEmpty() schema.Message { return &DataResponse{} }

func (r *DataResponse) Clone() schema.Message {
	q := *r
	q.Packets = make([]schema.DataPacket, len(r.Packets))
	for i := range r.Packets {
		q.Packets[i] = *r.Packets[i].Clone().(*schema.DataPacket)
	}
	return &q
}

// UniformRequest asks for a gap-tolerant interpolated extraction on a
// uniform grid at the given sampling rate.
type UniformRequest struct {
	schema.ChannelID
	StartTime    int64   `cbor:"StartTime"`
	EndTime      int64   `cbor:"EndTime"`
	SamplingRate float64 `cbor:"SamplingRate"`
	Identifier   uint64  `cbor:"Identifier"`
}

func (*UniformRequest) TypeTag() string { return "sfb.packetCache.uniformRequest" }
func (*UniformRequest) Version() string { return "1.0.0" }

func (r *UniformRequest) NewEmpty() schema.Message { return &UniformRequest{} }
func (r *UniformRequest) Clone() schema.Message    { q := *r; return &q }

// UniformResponse carries the dense vector and the zero-filled gaps.
type UniformResponse struct {
	StartTime    int64              `cbor:"StartTime"`
	SamplingRate float64            `cbor:"SamplingRate"`
	Samples      []float64          `cbor:"Samples"`
	Gaps         []Gap              `cbor:"Gaps,omitempty"`
	Identifier   uint64             `cbor:"Identifier"`
	ReturnCode   service.ReturnCode `cbor:"ReturnCode"`
}

func (*UniformResponse) TypeTag() string { return "sfb.packetCache.uniformResponse" }
func (*UniformResponse) Version() string { return "1.0.0" }

func (r *UniformResponse) NewEmpty() schema.Message { return &UniformResponse{} }

func (r *UniformResponse) Clone() schema.Message {
	q := *r
	q.Samples = slices.Clone(r.Samples)
	q.Gaps = slices.Clone(r.Gaps)
	return &q
}

// SensorRequest asks for every channel the cache currently holds.
type SensorRequest struct {
	Identifier uint64 `cbor:"Identifier"`
}

func (*SensorRequest) TypeTag() string { return "sfb.packetCache.sensorRequest" }
func (*SensorRequest) Version() string { return "1.0.0" }

func (r *SensorRequest) NewEmpty() schema.Message { return &SensorRequest{} }
func (r *SensorRequest) Clone() schema.Message    { q := *r; return &q }

// SensorResponse lists the channels.
type SensorResponse struct {
	Channels   []schema.ChannelID `cbor:"Channels"`
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*SensorResponse) TypeTag() string { return "sfb.packetCache.sensorResponse" }
func (*SensorResponse) Version() string { return "1.0.0" }

func (r *SensorResponse) NewEmpty() schema.Message { return &SensorResponse{} }

func (r *SensorResponse) Clone() schema.Message {
	q := *r
	q.Channels = slices.Clone(r.Channels)
	return &q
}

// FailureResponse is the generic reply for requests that could not be
// decoded at all.
type FailureResponse struct {
	Details    string             `cbor:"Details,omitempty"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*FailureResponse) TypeTag() string { return "sfb.packetCache.failureResponse" }
func (*FailureResponse) Version() string { return "1.0.0" }

func (r *FailureResponse) NewEmpty() schema.Message { return &FailureResponse{} }
func (r *FailureResponse) Clone() schema.Message    { q := *r; return &q }

// Service adapts the cache to the scalable worker harness.
type Service struct {
	cache *Cache
	log   zerolog.Logger
	types *message.Registry
}

func NewService(cache *Cache, log zerolog.Logger) *Service {
	return &Service{
		cache: cache,
		log:   log.With().Str("service", ServiceName).Logger(),
		types: message.NewRegistry(
			&DataRequest{}, &UniformRequest{}, &SensorRequest{}),
	}
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) RequestTypes() *message.Registry { return s.types }

func (s *Service) Handle(req schema.Message) schema.Message {
	switch r := req.(type) {
	case *DataRequest:
		return s.handleData(r)
	case *UniformRequest:
		return s.handleUniform(r)
	case *SensorRequest:
		return &SensorResponse{
			Channels:   s.cache.List(),
			Identifier: r.Identifier,
			ReturnCode: service.Success,
		}
	}
	return &FailureResponse{ReturnCode: service.InvalidMessage,
		Details: "unhandled request type " + req.TypeTag()}
}

func (s *Service) HandleInvalid(typeTag string, err error) schema.Message {
	return &FailureResponse{ReturnCode: service.InvalidMessage, Details: err.Error()}
}

func (s *Service) handleData(r *DataRequest) schema.Message {
	resp := &DataResponse{Identifier: r.Identifier, ReturnCode: service.Success}
	if err := r.ChannelID.Validate(); err != nil || r.EndTime <= r.StartTime {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	packets, err := s.cache.Get(r.ChannelID.String(), r.StartTime, r.EndTime)
	switch {
	case errors.Is(err, ErrChannelUnknown):
		resp.ReturnCode = service.NoSensor
	case errors.Is(err, ErrWindowEmpty):
		resp.ReturnCode = service.NoData
	case err != nil:
		s.log.Warn().Err(err).Msg("data extraction failed")
		resp.ReturnCode = service.AlgorithmFailure
	default:
		resp.Packets = make([]schema.DataPacket, len(packets))
		for i, p := range packets {
			resp.Packets[i] = *p
		}
	}
	return resp
}

func (s *Service) handleUniform(r *UniformRequest) schema.Message {
	resp := &UniformResponse{
		StartTime:    r.StartTime,
		SamplingRate: r.SamplingRate,
		Identifier:   r.Identifier,
		ReturnCode:   service.Success,
	}
	if err := r.ChannelID.Validate(); err != nil ||
		r.EndTime <= r.StartTime || r.SamplingRate <= 0 {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	samples, gaps, err := s.cache.GetUniform(
		r.ChannelID.String(), r.StartTime, r.EndTime, r.SamplingRate)
	switch {
	case errors.Is(err, ErrChannelUnknown):
		resp.ReturnCode = service.NoSensor
	case errors.Is(err, ErrWindowEmpty):
		resp.ReturnCode = service.NoData
	case err != nil:
		resp.ReturnCode = service.InvalidMessage
	default:
		resp.Samples = samples
		resp.Gaps = gaps
	}
	return resp
}
