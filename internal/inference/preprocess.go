// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inference

import (
	"errors"
	"fmt"

	"github.com/SeisFab/sf-backbone/internal/dsp"
)

// MinimumInputSamplingRate is the slowest telemetry the preprocessing
// chain accepts.
const MinimumInputSamplingRate = 1.0

// taperFraction is the total cosine taper applied before resampling.
const taperFraction = 0.02

var ErrSamplingRateTooLow = errors.New("input sampling rate below minimum")

// Preprocess brings one raw component onto the model's native grid:
// demean, detrend, taper, then resample. The input is not modified.
func Preprocess(signal []float64, samplingRate float64) ([]float64, error) {
	if samplingRate < MinimumInputSamplingRate {
		return nil, fmt.Errorf("%w: %g Hz", ErrSamplingRateTooLow, samplingRate)
	}
	if len(signal) < 2 {
		return nil, dsp.ErrTooFewKnots
	}
	work := make([]float64, len(signal))
	copy(work, signal)

	dsp.RemoveMean(work)
	dsp.Detrend(work)
	dsp.Taper(work, taperFraction)
	return dsp.Resample(work, samplingRate, NativeSamplingRate)
}

// PreprocessMulti runs Preprocess on each component and truncates all
// outputs to a common length so the tensor stays rectangular.
func PreprocessMulti(signals [][]float64, samplingRate float64) ([][]float64, error) {
	if len(signals) == 0 {
		return nil, errors.New("no components supplied")
	}
	out := make([][]float64, len(signals))
	shortest := -1
	for i, s := range signals {
		p, err := Preprocess(s, samplingRate)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = p
		if shortest < 0 || len(p) < shortest {
			shortest = len(p)
		}
	}
	for i := range out {
		out[i] = out[i][:shortest]
	}
	return out, nil
}
