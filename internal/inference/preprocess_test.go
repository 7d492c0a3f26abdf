// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inference

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessResamplesToNativeRate(t *testing.T) {
	// 4 s at 200 Hz comes back at 100 Hz.
	signal := make([]float64, 800)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 3 * float64(i) / 200)
	}
	out, err := Preprocess(signal, 200)
	require.NoError(t, err)
	assert.InDelta(t, 400, len(out), 2)
}

func TestPreprocessRemovesOffsetAndTrend(t *testing.T) {
	signal := make([]float64, 1000)
	for i := range signal {
		signal[i] = 100 + 0.05*float64(i)
	}
	out, err := Preprocess(signal, 100)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestPreprocessRejectsSlowTelemetry(t *testing.T) {
	_, err := Preprocess(make([]float64, 100), 0.5)
	assert.ErrorIs(t, err, ErrSamplingRateTooLow)
}

func TestPreprocessMultiKeepsTensorRectangular(t *testing.T) {
	a := make([]float64, 801)
	b := make([]float64, 800)
	out, err := PreprocessMulti([][]float64{a, b}, 200)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, len(out[0]), len(out[1]))
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice("GPU")
	require.NoError(t, err)
	assert.Equal(t, GPU, d)
	d, err = ParseDevice("")
	require.NoError(t, err)
	assert.Equal(t, CPU, d)
	_, err = ParseDevice("TPU")
	assert.Error(t, err)
}

func TestWeightsFileValidation(t *testing.T) {
	_, err := NewDetectorModel(Options{WeightsFile: "/does/not/exist.pt"}, 3)
	assert.ErrorIs(t, err, ErrWeightsNotFound)

	model, err := NewDetectorModel(Options{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, model.Components())
	assert.Equal(t, 100.0, model.SamplingRate())
	assert.Equal(t, 1008, model.ExpectedSignalLength())
	start, end := model.ValidWindow()
	assert.Less(t, start, end)
	assert.LessOrEqual(t, end, 1008)
}
