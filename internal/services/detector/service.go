// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package detector implements the phase-detection inference services.
// Three variants exist: one-component P, three-component P, and
// three-component S. The one-component variant accepts variable-length
// input (any multiple of 16 at or above the model window) and slides the
// window across it; the three-component variants demand exactly one
// window.
package detector

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Variant selects which detector a service instance runs.
type Variant int

const (
	OneComponentP Variant = iota
	ThreeComponentP
	ThreeComponentS
)

func (v Variant) String() string {
	switch v {
	case ThreeComponentP:
		return "uNetThreeComponentP"
	case ThreeComponentS:
		return "uNetThreeComponentS"
	}
	return "uNetOneComponentP"
}

func (v Variant) components() int {
	if v == OneComponentP {
		return 1
	}
	return 3
}

// slidingIncrement is the granularity the one-component input length must
// satisfy.
const slidingIncrement = 16

// Service runs one detector variant on the worker harness. The model is
// immutable after construction, so concurrent Handle calls are safe.
type Service struct {
	variant Variant
	model   inference.DetectorModel
	log     zerolog.Logger
	types   *message.Registry
}

func NewService(variant Variant, opts inference.Options, log zerolog.Logger) (*Service, error) {
	model, err := inference.NewDetectorModel(opts, variant.components())
	if err != nil {
		return nil, err
	}
	s := &Service{
		variant: variant,
		model:   model,
		log:     log.With().Str("service", variant.String()).Logger(),
	}
	if variant == OneComponentP {
		s.types = message.NewRegistry(
			&OneComponentPreprocessingRequest{},
			&OneComponentInferenceRequest{},
			&OneComponentProcessingRequest{})
	} else {
		s.types = message.NewRegistry(
			&ThreeComponentPreprocessingRequest{},
			&ThreeComponentInferenceRequest{},
			&ThreeComponentProcessingRequest{})
	}
	return s, nil
}

func (s *Service) Name() string { return s.variant.String() }

func (s *Service) RequestTypes() *message.Registry { return s.types }

// Model exposes the window contract for pick extraction downstream.
func (s *Service) Model() inference.DetectorModel { return s.model }

func (s *Service) Handle(req schema.Message) schema.Message {
	switch r := req.(type) {
	case *OneComponentPreprocessingRequest:
		return s.preprocessOne(r)
	case *OneComponentInferenceRequest:
		return s.inferOne(r.VerticalSignal, r.Identifier)
	case *OneComponentProcessingRequest:
		return s.processOne(r)
	case *ThreeComponentPreprocessingRequest:
		return s.preprocessThree(r)
	case *ThreeComponentInferenceRequest:
		return s.inferThree([][]float64{r.VerticalSignal, r.NorthSignal, r.EastSignal},
			r.Identifier)
	case *ThreeComponentProcessingRequest:
		return s.processThree(r)
	}
	return &InferenceResponse{ReturnCode: service.InvalidMessage}
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &InferenceResponse{ReturnCode: service.InvalidMessage}
}

func (s *Service) preprocessOne(r *OneComponentPreprocessingRequest) schema.Message {
	resp := &OneComponentPreprocessingResponse{
		Identifier:   r.Identifier,
		SamplingRate: s.model.SamplingRate(),
	}
	out, err := inference.Preprocess(r.VerticalSignal, r.SamplingRate)
	if err != nil {
		s.log.Warn().Err(err).Msg("preprocessing failed")
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	resp.VerticalSignal = out
	resp.ReturnCode = service.Success
	return resp
}

// validOneComponentLength enforces the variable-length contract.
func (s *Service) validOneComponentLength(n int) error {
	if n < s.model.ExpectedSignalLength() {
		return fmt.Errorf("signal length %d below minimum %d",
			n, s.model.ExpectedSignalLength())
	}
	if n%slidingIncrement != 0 {
		return fmt.Errorf("signal length %d is not a multiple of %d",
			n, slidingIncrement)
	}
	return nil
}

func (s *Service) inferOne(signal []float64, id uint64) schema.Message {
	resp := &InferenceResponse{
		Identifier:   id,
		SamplingRate: s.model.SamplingRate(),
	}
	if err := s.validOneComponentLength(len(signal)); err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	probability, err := s.slide(signal)
	if err != nil {
		s.log.Warn().Err(err).Msg("inference failed")
		resp.ReturnCode = service.AlgorithmFailure
		return resp
	}
	resp.Probability = probability
	resp.ReturnCode = service.Success
	return resp
}

// slide runs the fixed model window across a longer signal. Interior
// windows contribute only their trusted central region; the first and
// last windows fill the edges.
func (s *Service) slide(signal []float64) ([]float64, error) {
	window := s.model.ExpectedSignalLength()
	validStart, validEnd := s.model.ValidWindow()
	n := len(signal)
	out := make([]float64, n)

	pos := 0
	for {
		last := pos+window >= n
		if last {
			pos = n - window
		}
		p, err := s.model.Infer([][]float64{signal[pos : pos+window]})
		if err != nil {
			return nil, err
		}
		lo, hi := validStart, validEnd
		if pos == 0 {
			lo = 0
		}
		if last {
			hi = window
		}
		copy(out[pos+lo:pos+hi], p[lo:hi])
		if last {
			break
		}
		pos += validEnd - validStart
	}
	return out, nil
}

func (s *Service) processOne(r *OneComponentProcessingRequest) schema.Message {
	resp := &InferenceResponse{
		Identifier:   r.Identifier,
		SamplingRate: s.model.SamplingRate(),
	}
	signal, err := inference.Preprocess(r.VerticalSignal, r.SamplingRate)
	if err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	// Trim to the sliding-increment grid before inference.
	n := len(signal) - len(signal)%slidingIncrement
	if err := s.validOneComponentLength(n); err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	return s.inferOne(signal[:n], r.Identifier)
}

func (s *Service) preprocessThree(r *ThreeComponentPreprocessingRequest) schema.Message {
	resp := &ThreeComponentPreprocessingResponse{
		Identifier:   r.Identifier,
		SamplingRate: s.model.SamplingRate(),
	}
	out, err := inference.PreprocessMulti(
		[][]float64{r.VerticalSignal, r.NorthSignal, r.EastSignal}, r.SamplingRate)
	if err != nil {
		s.log.Warn().Err(err).Msg("preprocessing failed")
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	resp.VerticalSignal, resp.NorthSignal, resp.EastSignal = out[0], out[1], out[2]
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) inferThree(signals [][]float64, id uint64) schema.Message {
	resp := &InferenceResponse{
		Identifier:   id,
		SamplingRate: s.model.SamplingRate(),
	}
	for _, sig := range signals {
		if len(sig) != s.model.ExpectedSignalLength() {
			resp.ReturnCode = service.InvalidMessage
			return resp
		}
	}
	probability, err := s.model.Infer(signals)
	if err != nil {
		s.log.Warn().Err(err).Msg("inference failed")
		resp.ReturnCode = service.AlgorithmFailure
		return resp
	}
	resp.Probability = probability
	resp.ReturnCode = service.Success
	return resp
}

func (s *Service) processThree(r *ThreeComponentProcessingRequest) schema.Message {
	resp := &InferenceResponse{
		Identifier:   r.Identifier,
		SamplingRate: s.model.SamplingRate(),
	}
	signals, err := inference.PreprocessMulti(
		[][]float64{r.VerticalSignal, r.NorthSignal, r.EastSignal}, r.SamplingRate)
	if err != nil {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	window := s.model.ExpectedSignalLength()
	for i := range signals {
		if len(signals[i]) < window {
			resp.ReturnCode = service.InvalidMessage
			return resp
		}
		signals[i] = signals[i][:window]
	}
	return s.inferThree(signals, r.Identifier)
}
