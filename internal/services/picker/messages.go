// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package picker

import (
	"slices"

	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// PreprocessingRequest brings a raw snippet onto the model grid without
// running inference. One-component services reject north and east signals;
// three-component services reject requests missing either of them.
type PreprocessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	NorthSignal    []float64 `cbor:"NorthSignal,omitempty"`
	EastSignal     []float64 `cbor:"EastSignal,omitempty"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*PreprocessingRequest) TypeTag() string { return "sfb.pickers.preprocessingRequest" }
func (*PreprocessingRequest) Version() string { return "1.0.0" }

func (r *PreprocessingRequest) NewEmpty() schema.Message { return &PreprocessingRequest{} }

func (r *PreprocessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// PreprocessingResponse returns the snippet on the native grid.
type PreprocessingResponse struct {
	VerticalSignal []float64          `cbor:"VerticalSignal"`
	NorthSignal    []float64          `cbor:"NorthSignal,omitempty"`
	EastSignal     []float64          `cbor:"EastSignal,omitempty"`
	SamplingRate   float64            `cbor:"SamplingRate"`
	Identifier     uint64             `cbor:"Identifier"`
	ReturnCode     service.ReturnCode `cbor:"ReturnCode"`
}

func (*PreprocessingResponse) TypeTag() string { return "sfb.pickers.preprocessingResponse" }
func (*PreprocessingResponse) Version() string { return "1.0.0" }

func (r *PreprocessingResponse) NewEmpty() schema.Message { return &PreprocessingResponse{} }

func (r *PreprocessingResponse) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// InferenceRequest runs the model on an already-preprocessed snippet of
// exactly the expected length, assumed centered on the seed pick.
type InferenceRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	NorthSignal    []float64 `cbor:"NorthSignal,omitempty"`
	EastSignal     []float64 `cbor:"EastSignal,omitempty"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*InferenceRequest) TypeTag() string { return "sfb.pickers.inferenceRequest" }
func (*InferenceRequest) Version() string { return "1.0.0" }

func (r *InferenceRequest) NewEmpty() schema.Message { return &InferenceRequest{} }

func (r *InferenceRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// ProcessingRequest is the combined fast path on a raw snippet.
type ProcessingRequest struct {
	VerticalSignal []float64 `cbor:"VerticalSignal"`
	NorthSignal    []float64 `cbor:"NorthSignal,omitempty"`
	EastSignal     []float64 `cbor:"EastSignal,omitempty"`
	SamplingRate   float64   `cbor:"SamplingRate"`
	Identifier     uint64    `cbor:"Identifier"`
}

func (*ProcessingRequest) TypeTag() string { return "sfb.pickers.processingRequest" }
func (*ProcessingRequest) Version() string { return "1.0.0" }

func (r *ProcessingRequest) NewEmpty() schema.Message { return &ProcessingRequest{} }

func (r *ProcessingRequest) Clone() schema.Message {
	q := *r
	q.VerticalSignal = slices.Clone(r.VerticalSignal)
	q.NorthSignal = slices.Clone(r.NorthSignal)
	q.EastSignal = slices.Clone(r.EastSignal)
	return &q
}

// Response carries the onset correction in seconds to add to the seed
// pick time.
type Response struct {
	Correction float64            `cbor:"Correction"`
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*Response) TypeTag() string { return "sfb.pickers.response" }
func (*Response) Version() string { return "1.0.0" }

func (r *Response) NewEmpty() schema.Message { return &Response{} }
func (r *Response) Clone() schema.Message    { q := *r; return &q }
