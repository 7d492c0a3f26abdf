// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package detector

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// synthetic builds n samples at 100 Hz: quiet background with an
// impulsive onset at the given sample.
func synthetic(n, onset int) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / 100
		out[i] = 0.5 * math.Sin(2*math.Pi*1.0*t)
		if i >= onset {
			out[i] += 25 * math.Sin(2*math.Pi*5.0*t)
		}
	}
	return out
}

func newThreeComponentService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ThreeComponentP, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

// Scenario: 11 s of synthetic 100 Hz three-component signal; the
// processing request returns a 1008-sample posterior in [0,1] whose
// argmax falls inside the model's central valid window.
func TestThreeComponentProcessing(t *testing.T) {
	svc := newThreeComponentService(t)
	onset := 500
	req := &ThreeComponentProcessingRequest{
		VerticalSignal: synthetic(1100, onset),
		NorthSignal:    synthetic(1100, onset),
		EastSignal:     synthetic(1100, onset),
		SamplingRate:   100,
		Identifier:     77,
	}
	resp, ok := svc.Handle(req).(*InferenceResponse)
	require.True(t, ok)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 77, resp.Identifier)
	assert.Equal(t, 100.0, resp.SamplingRate)
	require.Len(t, resp.Probability, inference.DetectorWindowLength)

	argmax := 0
	for i, v := range resp.Probability {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if v > resp.Probability[argmax] {
			argmax = i
		}
	}
	start, end := svc.Model().ValidWindow()
	assert.GreaterOrEqual(t, argmax, start)
	assert.Less(t, argmax, end)
}

func TestThreeComponentInferenceRejectsWrongLength(t *testing.T) {
	svc := newThreeComponentService(t)
	req := &ThreeComponentInferenceRequest{
		VerticalSignal: make([]float64, 1000),
		NorthSignal:    make([]float64, 1000),
		EastSignal:     make([]float64, 1000),
	}
	resp := svc.Handle(req).(*InferenceResponse)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestOneComponentLengthContract(t *testing.T) {
	svc, err := NewService(OneComponentP, inference.Options{}, zerolog.Nop())
	require.NoError(t, err)

	// Too short.
	resp := svc.Handle(&OneComponentInferenceRequest{
		VerticalSignal: make([]float64, 992),
	}).(*InferenceResponse)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)

	// Not a multiple of 16.
	resp = svc.Handle(&OneComponentInferenceRequest{
		VerticalSignal: make([]float64, 1009),
	}).(*InferenceResponse)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)

	// A longer multiple of 16 runs the sliding window and returns a
	// posterior per input sample.
	n := 1008 + 5*16
	resp = svc.Handle(&OneComponentInferenceRequest{
		VerticalSignal: synthetic(n, 600),
	}).(*InferenceResponse)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.Len(t, resp.Probability, n)
}

func TestPreprocessingOnly(t *testing.T) {
	svc := newThreeComponentService(t)
	req := &ThreeComponentPreprocessingRequest{
		VerticalSignal: synthetic(2200, 1000),
		NorthSignal:    synthetic(2200, 1000),
		EastSignal:     synthetic(2200, 1000),
		SamplingRate:   200, // downsampled to the native 100 Hz
	}
	resp, ok := svc.Handle(req).(*ThreeComponentPreprocessingResponse)
	require.True(t, ok)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.Equal(t, 100.0, resp.SamplingRate)
	assert.InDelta(t, 1100, len(resp.VerticalSignal), 2)
	assert.Len(t, resp.NorthSignal, len(resp.VerticalSignal))
	assert.Len(t, resp.EastSignal, len(resp.VerticalSignal))
}

func TestExtractPicks(t *testing.T) {
	samples := make([]float64, 3000)
	bump := func(center int) {
		for i := center - 20; i <= center+20; i++ {
			d := float64(i-center) / 10
			samples[i] = math.Max(samples[i], 0.97*math.Exp(-d*d))
		}
	}
	bump(500)
	bump(2000)

	pp := &schema.ProbabilityPacket{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
		},
		StartTime:    1628803598000000,
		SamplingRate: 100,
		Samples:      samples,
		Algorithm:    "uNetThreeComponentP",
	}
	picks := ExtractPicks(pp, schema.PhaseP, 0.9, 500*time.Millisecond)
	require.Len(t, picks, 2)

	assert.EqualValues(t, 1628803598000000+5000000, picks[0].Time)
	assert.EqualValues(t, 1628803598000000+20000000, picks[1].Time)
	for _, p := range picks {
		assert.Equal(t, schema.PhaseP, p.PhaseHint)
		require.NotNil(t, p.Posterior)
		assert.Greater(t, *p.Posterior, 0.9)
		assert.Equal(t, "uNetThreeComponentP", p.Algorithm)
		assert.Equal(t, schema.DefaultStandardError, p.StandardError)
	}
}

func TestExtractPicksMergesCloseExcursions(t *testing.T) {
	samples := make([]float64, 1000)
	samples[300] = 0.95
	samples[320] = 0.99 // within 500 ms of the first crossing
	pp := &schema.ProbabilityPacket{
		StartTime: 0, SamplingRate: 100, Samples: samples,
	}
	picks := ExtractPicks(pp, schema.PhaseP, 0.9, 500*time.Millisecond)
	require.Len(t, picks, 1)
	assert.EqualValues(t, 3200000, picks[0].Time)
}
