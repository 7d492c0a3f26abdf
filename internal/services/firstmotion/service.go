// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package firstmotion implements the CNN one-component P first-motion
// classifier. Input is a fixed snippet centered on the pick; output is
// up, down, or unknown plus the posterior triple. The classification
// threshold defaults to 1/3 and may be overridden per request.
package firstmotion

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the logical discovery name.
const ServiceName = "cnnFirstMotionOneComponentP"

// DefaultThreshold is the posterior an up or down class must exceed to be
// assigned.
const DefaultThreshold = 1.0 / 3.0

// PreprocessingRequest brings a raw snippet onto the model grid.
type PreprocessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*PreprocessingRequest) TypeTag() string { return "sfb.firstMotion.preprocessingRequest" }
func (*PreprocessingRequest) Version() string { return "1.0.0" }

func (r *PreprocessingRequest) NewEmpty() schema.Message { return &PreprocessingRequest{} }

func (r *PreprocessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// PreprocessingResponse returns the snippet on the native grid.
type PreprocessingResponse struct {
	VerticalSignal []float64          `cbor:"VerticalSignal"`
	SamplingRate   float64            `cbor:"SamplingRate"`
	Identifier     uint64             `cbor:"Identifier"`
	ReturnCode     service.ReturnCode `cbor:"ReturnCode"`
}

func (*PreprocessingResponse) TypeTag() string { return "sfb.firstMotion.preprocessingResponse" }
func (*PreprocessingResponse) Version() string { return "1.0.0" }

func (r *PreprocessingResponse) NewEmpty() schema.Message { return &PreprocessingResponse{} }

func (r *PreprocessingResponse) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// InferenceRequest classifies an already-preprocessed snippet of exactly
// the expected length. Threshold zero selects the default.
type InferenceRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	Threshold      float64   `cbor:"Threshold,omitempty"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*InferenceRequest) TypeTag() string { return "sfb.firstMotion.inferenceRequest" }
func (*InferenceRequest) Version() string { return "1.0.0" }

func (r *InferenceRequest) NewEmpty() schema.Message { return &InferenceRequest{} }

func (r *InferenceRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// ProcessingRequest is the combined fast path.
type ProcessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Threshold      float64   `cbor:"Threshold,omitempty"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*ProcessingRequest) TypeTag() string { return "sfb.firstMotion.processingRequest" }
func (*ProcessingRequest) Version() string { return "1.0.0" }

func (r *ProcessingRequest) NewEmpty() schema.Message { return &ProcessingRequest{} }

func (r *ProcessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// Response carries the classification and the posterior triple.
type Response struct {
	FirstMotion        schema.FirstMotion `cbor:"FirstMotion"`
	ProbabilityUp      float64            `cbor:"ProbabilityUp"`
	ProbabilityDown    float64            `cbor:"ProbabilityDown"`
	ProbabilityUnknown float64            `cbor:"ProbabilityUnknown"`
	Identifier         uint64             `cbor:"Identifier"`
	ReturnCode         service.ReturnCode `cbor:"ReturnCode"`
}

func (*Response) TypeTag() string { return "sfb.firstMotion.response" }
func (*Response) Version() string { return "1.0.0" }

func (r *Response) NewEmpty() schema.Message { return &Response{} }
func (r *Response) Clone() schema.Message    { q := *r; return &q }

// Classify applies the threshold rule to a posterior triple: assign the
// larger of up/down when it beats both the threshold and the unknown
// posterior, otherwise unknown.
func Classify(pUp, pDown, pUnknown, threshold float64) schema.FirstMotion {
	best := pUp
	motion := schema.FirstMotionUp
	if pDown > pUp {
		best = pDown
		motion = schema.FirstMotionDown
	}
	if best > threshold && best > pUnknown {
		return motion
	}
	return schema.FirstMotionUnknown
}

// Service runs the classifier on the worker harness.
type Service struct {
	model inference.FirstMotionModel
	log   zerolog.Logger
	types *message.Registry
}

func NewService(opts inference.Options, log zerolog.Logger) (*Service, error) {
	model, err := inference.NewFirstMotionModel(opts)
	if err != nil {
		return nil, err
	}
	return &Service{
		model: model,
		log:   log.With().Str("service", ServiceName).Logger(),
		types: message.NewRegistry(
			&PreprocessingRequest{}, &InferenceRequest{}, &ProcessingRequest{}),
	}, nil
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) RequestTypes() *message.Registry { return s.types }

func (s *Service) Model() inference.FirstMotionModel { return s.model }

func (s *Service) Handle(req schema.Message) schema.Message {
	switch r := req.(type) {
	case *PreprocessingRequest:
		return s.preprocess(r)
	case *InferenceRequest:
		return s.infer(r.VerticalSignal, r.Threshold, r.Identifier)
	case *ProcessingRequest:
		return s.process(r)
	}
	return &Response{ReturnCode: service.InvalidMessage}
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &Response{ReturnCode: service.InvalidMessage}
}

func (s *Service) preprocess(r *PreprocessingRequest) schema.Message {
	resp := &PreprocessingResponse{
		Identifier:   r.Identifier,
		SamplingRate: s.model.SamplingRate(),
	}
	out, err := inference.Preprocess(r.VerticalSignal, r.SamplingRate)
	if err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	resp.VerticalSignal = out
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) infer(signal []float64, threshold float64, id uint64) schema.Message {
	resp := &Response{Identifier: id}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 ||
		len(signal) != s.model.ExpectedSignalLength() {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	out, err := s.model.Infer([][]float64{signal})
	if err != nil || len(out) != 3 {
		s.log.Warn().Err(err).Msg("inference failed")
		resp.ReturnCode = service.AlgorithmFailure
		return resp
	}
	resp.ProbabilityUp, resp.ProbabilityDown, resp.ProbabilityUnknown = out[0], out[1], out[2]
	resp.FirstMotion = Classify(out[0], out[1], out[2], threshold)
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) process(r *ProcessingRequest) schema.Message {
	resp := &Response{Identifier: r.Identifier}
	signal, err := inference.Preprocess(r.VerticalSignal, r.SamplingRate)
	if err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	want := s.model.ExpectedSignalLength()
	if len(signal) < want {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	lead := (len(signal) - want) / 2
	return s.infer(signal[lead:lead+want], r.Threshold, r.Identifier)
}
