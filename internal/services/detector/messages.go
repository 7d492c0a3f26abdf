// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package detector

import (
	"slices"

	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Every detector exposes the uniform three-request contract: preprocess
// only, infer only, or the combined fast path. One-component requests
// carry the vertical channel; three-component requests carry all three.

// OneComponentPreprocessingRequest preprocesses a raw vertical signal at
// an arbitrary sampling rate onto the model's native grid.
type OneComponentPreprocessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*OneComponentPreprocessingRequest) TypeTag() string {
	return "sfb.detectors.oneComponentP.preprocessingRequest"
}
func (*OneComponentPreprocessingRequest) Version() string { return "1.0.0" }

func (r *OneComponentPreprocessingRequest) NewEmpty() schema.Message {
	return &OneComponentPreprocessingRequest{}
}

func (r *OneComponentPreprocessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// OneComponentPreprocessingResponse returns the signal on the native grid.
type OneComponentPreprocessingResponse struct {
	VerticalSignal []float64          `cbor:"VerticalSignal"`
	SamplingRate   float64            `cbor:"SamplingRate"`
	Identifier     uint64             `cbor:"Identifier"`
	ReturnCode     service.ReturnCode `cbor:"ReturnCode"`
}

func (*OneComponentPreprocessingResponse) TypeTag() string {
	return "sfb.detectors.oneComponentP.preprocessingResponse"
}
func (*OneComponentPreprocessingResponse) Version() string { return "1.0.0" }

func (r *OneComponentPreprocessingResponse) NewEmpty() schema.Message {
	return &OneComponentPreprocessingResponse{}
}

func (r *OneComponentPreprocessingResponse) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// OneComponentInferenceRequest runs the model on an already-preprocessed
// signal. The length must be a multiple of 16 and at least the model
// window; longer signals use the sliding-window strategy.
type OneComponentInferenceRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*OneComponentInferenceRequest) TypeTag() string {
	return "sfb.detectors.oneComponentP.inferenceRequest"
}
func (*OneComponentInferenceRequest) Version() string { return "1.0.0" }

func (r *OneComponentInferenceRequest) NewEmpty() schema.Message {
	return &OneComponentInferenceRequest{}
}

func (r *OneComponentInferenceRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// OneComponentProcessingRequest is the combined fast path.
type OneComponentProcessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*OneComponentProcessingRequest) TypeTag() string {
	return "sfb.detectors.oneComponentP.processingRequest"
}
func (*OneComponentProcessingRequest) Version() string { return "1.0.0" }

func (r *OneComponentProcessingRequest) NewEmpty() schema.Message {
	return &OneComponentProcessingRequest{}
}

func (r *OneComponentProcessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	return &q
}

// InferenceResponse is the posterior for both the inference-only and the
// combined paths, shared by all detector variants.
type InferenceResponse struct {
	Probability  []float64          `cbor:"ProbabilitySignal"`
	SamplingRate float64            `cbor:"SamplingRate"`
	Identifier   uint64             `cbor:"Identifier"`
	ReturnCode   service.ReturnCode `cbor:"ReturnCode"`
}

func (*InferenceResponse) TypeTag() string { return "sfb.detectors.inferenceResponse" }
func (*InferenceResponse) Version() string { return "1.0.0" }

func (r *InferenceResponse) NewEmpty() schema.Message { return &InferenceResponse{} }

func (r *InferenceResponse) Clone() schema.Message {
	q := *r
	q.Probability = slices.Clone(r.Probability)
	return &q
}

// ThreeComponentPreprocessingRequest preprocesses raw three-component
// telemetry onto the native grid.
type ThreeComponentPreprocessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	NorthSignal    []float64 `cbor:"NorthSignal"`
	EastSignal     []float64 `cbor:"EastSignal"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*ThreeComponentPreprocessingRequest) TypeTag() string {
	return "sfb.detectors.threeComponent.preprocessingRequest"
}
func (*ThreeComponentPreprocessingRequest) Version() string { return "1.0.0" }

func (r *ThreeComponentPreprocessingRequest) NewEmpty() schema.Message {
	return &ThreeComponentPreprocessingRequest{}
}

func (r *ThreeComponentPreprocessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// ThreeComponentPreprocessingResponse returns all three components.
type ThreeComponentPreprocessingResponse struct {
	VerticalSignal []float64          `cbor:"VerticalSignal"`
	NorthSignal    []float64          `cbor:"NorthSignal"`
	EastSignal     []float64          `cbor:"EastSignal"`
	SamplingRate   float64            `cbor:"SamplingRate"`
	Identifier     uint64             `cbor:"Identifier"`
	ReturnCode     service.ReturnCode `cbor:"ReturnCode"`
}

func (*ThreeComponentPreprocessingResponse) TypeTag() string {
	return "sfb.detectors.threeComponent.preprocessingResponse"
}
func (*ThreeComponentPreprocessingResponse) Version() string { return "1.0.0" }

func (r *ThreeComponentPreprocessingResponse) NewEmpty() schema.Message {
	return &ThreeComponentPreprocessingResponse{}
}

func (r *ThreeComponentPreprocessingResponse) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// ThreeComponentInferenceRequest runs the model on a fixed preprocessed
// window of all three components.
type ThreeComponentInferenceRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	NorthSignal    []float64 `cbor:"NorthSignal"`
	EastSignal     []float64 `cbor:"EastSignal"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*ThreeComponentInferenceRequest) TypeTag() string {
	return "sfb.detectors.threeComponent.inferenceRequest"
}
func (*ThreeComponentInferenceRequest) Version() string { return "1.0.0" }

func (r *ThreeComponentInferenceRequest) NewEmpty() schema.Message {
	return &ThreeComponentInferenceRequest{}
}

func (r *ThreeComponentInferenceRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// ThreeComponentProcessingRequest is the combined fast path.
type ThreeComponentProcessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	NorthSignal    []float64 `cbor:"NorthSignal"`
	EastSignal     []float64 `cbor:"EastSignal"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*ThreeComponentProcessingRequest) TypeTag() string {
	return "sfb.detectors.threeComponent.processingRequest"
}
func (*ThreeComponentProcessingRequest) Version() string { return "1.0.0" }

func (r *ThreeComponentProcessingRequest) NewEmpty() schema.Message {
	return &ThreeComponentProcessingRequest{}
}

func (r *ThreeComponentProcessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}
