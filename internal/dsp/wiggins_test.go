// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWigginsReproducesNodesExactly(t *testing.T) {
	const rate = 100.0
	const f = 2.0
	n := 500
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i) / rate
		y[i] = math.Sin(2 * math.Pi * f * x[i])
	}
	w, err := NewWiggins(x, y)
	require.NoError(t, err)

	// Interpolating back onto the same uniform grid reproduces the
	// samples to machine precision.
	for i := 0; i < n; i++ {
		assert.InDelta(t, y[i], w.At(x[i]), 1e-9)
	}
}

func TestWigginsMonotoneSegmentsDoNotOvershoot(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{0, 0, 1, 1, 1}
	w, err := NewWiggins(x, y)
	require.NoError(t, err)
	for q := 0.0; q <= 4.0; q += 0.01 {
		v := w.At(q)
		assert.GreaterOrEqual(t, v, -1e-12)
		assert.LessOrEqual(t, v, 1+1e-12)
	}
}

func TestWigginsClampsOutsideSpan(t *testing.T) {
	w, err := NewWiggins([]float64{0, 1}, []float64{2, 4})
	require.NoError(t, err)
	assert.Equal(t, 2.0, w.At(-5))
	assert.Equal(t, 4.0, w.At(9))
}

func TestWigginsRejectsBadKnots(t *testing.T) {
	_, err := NewWiggins([]float64{0}, []float64{1})
	assert.ErrorIs(t, err, ErrTooFewKnots)
	_, err = NewWiggins([]float64{0, 0}, []float64{1, 2})
	assert.Error(t, err)
}

func TestResampleIdentityAndDownrate(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	same, err := Resample(x, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, x, same)

	down, err := Resample(x, 100, 50)
	require.NoError(t, err)
	require.Len(t, down, 4)
	assert.InDelta(t, 0, down[0], 1e-12)
	assert.InDelta(t, 2, down[1], 1e-9)
}

func TestRemoveMeanAndDetrend(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	RemoveMean(x)
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-12)

	// A pure linear ramp detrends to zero.
	y := make([]float64, 100)
	for i := range y {
		y[i] = 3 + 0.25*float64(i)
	}
	Detrend(y)
	for _, v := range y {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestStaLtaFlagsOnset(t *testing.T) {
	n := 1000
	x := make([]float64, n)
	for i := 500; i < n; i++ {
		x[i] = 10
	}
	cf := StaLta(x, 5, 50)
	require.Len(t, cf, n)

	peak, peakIdx := 0.0, 0
	for i, v := range cf {
		if v > peak {
			peak, peakIdx = v, i
		}
	}
	assert.InDelta(t, 500, peakIdx, 10)
	assert.Greater(t, peak, 1.0)
}
