// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package firstmotion

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

func TestClassifyRule(t *testing.T) {
	// The larger of up/down wins when it beats the threshold and the
	// unknown posterior.
	assert.Equal(t, schema.FirstMotionUp, Classify(0.7, 0.1, 0.2, 1.0/3.0))
	assert.Equal(t, schema.FirstMotionDown, Classify(0.1, 0.7, 0.2, 1.0/3.0))
	// Below threshold.
	assert.Equal(t, schema.FirstMotionUnknown, Classify(0.3, 0.1, 0.6, 1.0/3.0))
	// Beats the threshold but not the unknown posterior.
	assert.Equal(t, schema.FirstMotionUnknown, Classify(0.4, 0.1, 0.5, 1.0/3.0))
	// A stricter per-request threshold flips a call to unknown.
	assert.Equal(t, schema.FirstMotionUp, Classify(0.6, 0.1, 0.3, 1.0/3.0))
	assert.Equal(t, schema.FirstMotionUnknown, Classify(0.6, 0.1, 0.3, 0.7))
}

// snippet builds a quiet trace with a sharp swing after the center.
func snippet(up bool) []float64 {
	out := make([]float64, inference.FirstMotionLength)
	center := len(out) / 2
	for i := 0; i < len(out); i++ {
		out[i] = 0.01 * math.Sin(float64(i)/7)
	}
	sign := 1.0
	if !up {
		sign = -1
	}
	for i := center; i < center+15; i++ {
		out[i] += sign * 5 * float64(i-center)
	}
	return out
}

func TestInferenceClassifiesPolarity(t *testing.T) {
	svc, err := NewService(inference.Options{}, zerolog.Nop())
	require.NoError(t, err)

	resp := svc.Handle(&InferenceRequest{
		VerticalSignal: snippet(true), Identifier: 3,
	}).(*Response)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 3, resp.Identifier)
	assert.Equal(t, schema.FirstMotionUp, resp.FirstMotion)
	sum := resp.ProbabilityUp + resp.ProbabilityDown + resp.ProbabilityUnknown
	assert.InDelta(t, 1.0, sum, 1e-9)

	resp = svc.Handle(&InferenceRequest{VerticalSignal: snippet(false)}).(*Response)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.Equal(t, schema.FirstMotionDown, resp.FirstMotion)
}

func TestInferenceRejectsWrongLength(t *testing.T) {
	svc, err := NewService(inference.Options{}, zerolog.Nop())
	require.NoError(t, err)
	resp := svc.Handle(&InferenceRequest{
		VerticalSignal: make([]float64, 100),
	}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)

	resp = svc.Handle(&InferenceRequest{
		VerticalSignal: make([]float64, inference.FirstMotionLength),
		Threshold:      1.5,
	}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestProcessingCentersSnippet(t *testing.T) {
	svc, err := NewService(inference.Options{}, zerolog.Nop())
	require.NoError(t, err)

	// A longer raw snippet at the native rate trims symmetrically.
	long := make([]float64, 600)
	center := len(long) / 2
	for i := center; i < center+15; i++ {
		long[i] = 5 * float64(i-center)
	}
	resp := svc.Handle(&ProcessingRequest{
		VerticalSignal: long, SamplingRate: 100,
	}).(*Response)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.Equal(t, schema.FirstMotionUp, resp.FirstMotion)
}
