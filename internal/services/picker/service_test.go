// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package picker

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/service"
)

// snippetWithOnset builds n samples at 100 Hz whose energy jumps at the
// given sample.
func snippetWithOnset(n, onset int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / 100
		out[i] = 0.2 * math.Sin(2*math.Pi*1.5*t)
		if i >= onset {
			out[i] += 15 * math.Sin(2*math.Pi*8*t)
		}
	}
	return out
}

func TestVariantConstants(t *testing.T) {
	assert.Equal(t, 400, OneComponentP.snippetLength())
	assert.Equal(t, 500, ThreeComponentP.snippetLength())
	assert.Equal(t, 600, ThreeComponentS.snippetLength())
	assert.Equal(t, 1, OneComponentP.components())
	assert.Equal(t, 3, ThreeComponentS.components())
}

func TestInferenceReturnsBoundedCorrection(t *testing.T) {
	svc, err := NewService(OneComponentP, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)

	// Seed pick 0.15 s late: the true onset sits before the center.
	onset := 400/2 - 15
	resp := svc.Handle(&InferenceRequest{
		VerticalSignal: snippetWithOnset(400, onset),
		Identifier:     21,
	}).(*Response)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 21, resp.Identifier)
	assert.LessOrEqual(t, math.Abs(resp.Correction), 0.5)
	assert.InDelta(t, -0.15, resp.Correction, 0.1)
}

func TestInferenceRejectsWrongLength(t *testing.T) {
	svc, err := NewService(OneComponentP, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)
	resp := svc.Handle(&InferenceRequest{
		VerticalSignal: make([]float64, 300),
	}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestOneComponentRejectsExtraComponents(t *testing.T) {
	svc, err := NewService(OneComponentP, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)
	resp := svc.Handle(&InferenceRequest{
		VerticalSignal: make([]float64, 400),
		NorthSignal:    make([]float64, 400),
	}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestThreeComponentRequiresAllComponents(t *testing.T) {
	svc, err := NewService(ThreeComponentS, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)
	resp := svc.Handle(&InferenceRequest{
		VerticalSignal: make([]float64, 600),
	}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestProcessingTrimsAroundCenter(t *testing.T) {
	svc, err := NewService(OneComponentP, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)

	// 6 s raw snippet centered on the seed onset at sample 300.
	resp := svc.Handle(&ProcessingRequest{
		VerticalSignal: snippetWithOnset(600, 300),
		SamplingRate:   100,
		Identifier:     8,
	}).(*Response)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.LessOrEqual(t, math.Abs(resp.Correction), 0.5)
	assert.InDelta(t, 0, resp.Correction, 0.1)
}
