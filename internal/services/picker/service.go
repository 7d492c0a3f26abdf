// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package picker implements the onset-refinement services. A picker takes
// a fixed-length snippet centered on a seed pick and returns a scalar
// correction in seconds. Variants: CNN one-component P, three-component
// P, and three-component S; the expected snippet lengths are model
// constants published by the service.
package picker

import (
	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Variant selects which picker a service instance runs.
type Variant int

const (
	OneComponentP Variant = iota
	ThreeComponentP
	ThreeComponentS
)

func (v Variant) String() string {
	switch v {
	case ThreeComponentP:
		return "cnnThreeComponentP"
	case ThreeComponentS:
		return "cnnThreeComponentS"
	}
	return "cnnOneComponentP"
}

func (v Variant) components() int {
	if v == OneComponentP {
		return 1
	}
	return 3
}

func (v Variant) snippetLength() int {
	switch v {
	case ThreeComponentP:
		return inference.PickerThreeComponentPLength
	case ThreeComponentS:
		return inference.PickerThreeComponentSLength
	}
	return inference.PickerOneComponentPLength
}

// Service runs one picker variant on the worker harness.
type Service struct {
	variant Variant
	model   inference.PickerModel
	log     zerolog.Logger
	types   *message.Registry
}

func NewService(variant Variant, opts inference.Options, log zerolog.Logger) (*Service, error) {
	model, err := inference.NewPickerModel(opts, variant.components(), variant.snippetLength())
	if err != nil {
		return nil, err
	}
	return &Service{
		variant: variant,
		model:   model,
		log:     log.With().Str("service", variant.String()).Logger(),
		types: message.NewRegistry(
			&PreprocessingRequest{}, &InferenceRequest{}, &ProcessingRequest{}),
	}, nil
}

func (s *Service) Name() string { return s.variant.String() }

func (s *Service) RequestTypes() *message.Registry { return s.types }

func (s *Service) Model() inference.PickerModel { return s.model }

func (s *Service) Handle(req schema.Message) schema.Message {
	switch r := req.(type) {
	case *PreprocessingRequest:
		return s.preprocess(r)
	case *InferenceRequest:
		return s.infer(s.gather(r.VerticalSignal, r.NorthSignal, r.EastSignal), r.Identifier)
	case *ProcessingRequest:
		return s.process(r)
	}
	return &Response{ReturnCode: service.InvalidMessage}
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &Response{ReturnCode: service.InvalidMessage}
}

// gather assembles the component tensor for this variant, or nil when the
// request does not carry the required components.
func (s *Service) gather(vertical, north, east []float64) [][]float64 {
	if len(vertical) == 0 {
		return nil
	}
	if s.variant.components() == 1 {
		if len(north) != 0 || len(east) != 0 {
			return nil
		}
		return [][]float64{vertical}
	}
	if len(north) == 0 || len(east) == 0 {
		return nil
	}
	return [][]float64{vertical, north, east}
}

func (s *Service) preprocess(r *PreprocessingRequest) schema.Message {
	resp := &PreprocessingResponse{
		Identifier:   r.Identifier,
		SamplingRate: s.model.SamplingRate(),
	}
	signals := s.gather(r.VerticalSignal, r.NorthSignal, r.EastSignal)
	if signals == nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	out, err := inference.PreprocessMulti(signals, r.SamplingRate)
	if err != nil {
		s.log.Warn().Err(err).Msg("preprocessing failed")
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	resp.VerticalSignal = out[0]
	if len(out) == 3 {
		resp.NorthSignal, resp.EastSignal = out[1], out[2]
	}
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) infer(signals [][]float64, id uint64) schema.Message {
	resp := &Response{Identifier: id}
	if signals == nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	for _, sig := range signals {
		if len(sig) != s.model.ExpectedSignalLength() {
			resp.ReturnCode = service.InvalidMessage
			return resp
		}
	}
	out, err := s.model.Infer(signals)
	if err != nil || len(out) != 1 {
		s.log.Warn().Err(err).Msg("inference failed")
		resp.ReturnCode = service.AlgorithmFailure
		return resp
	}
	resp.Correction = out[0]
	resp.ReturnCode = service.Success
	return resp
}

// process preprocesses the raw snippet and trims it symmetrically around
// the center so the seed pick stays centered.
func (s *Service) process(r *ProcessingRequest) schema.Message {
	resp := &Response{Identifier: r.Identifier}
	signals := s.gather(r.VerticalSignal, r.NorthSignal, r.EastSignal)
	if signals == nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	out, err := inference.PreprocessMulti(signals, r.SamplingRate)
	if err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	want := s.model.ExpectedSignalLength()
	for i := range out {
		n := len(out[i])
		if n < want {
			resp.ReturnCode = service.InvalidMessage
			return resp
		}
		lead := (n - want) / 2
		out[i] = out[i][lead : lead+want]
	}
	return s.infer(out, r.Identifier)
}
