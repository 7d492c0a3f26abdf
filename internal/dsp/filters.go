// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dsp

import (
	"errors"
	"math"
)

// RemoveMean subtracts the arithmetic mean in place.
func RemoveMean(x []float64) {
	if len(x) == 0 {
		return
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	for i := range x {
		x[i] -= mean
	}
}

// Detrend removes the least-squares linear trend in place.
func Detrend(x []float64) {
	n := len(x)
	if n < 2 {
		return
	}
	// Closed-form fit against sample index.
	var sumY, sumXY float64
	for i, v := range x {
		sumY += v
		sumXY += float64(i) * v
	}
	nf := float64(n)
	sumX := nf * (nf - 1) / 2
	sumXX := (nf - 1) * nf * (2*nf - 1) / 6
	den := nf*sumXX - sumX*sumX
	if den == 0 {
		return
	}
	slope := (nf*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / nf
	for i := range x {
		x[i] -= intercept + slope*float64(i)
	}
}

// Taper applies a symmetric cosine (Tukey) taper in place. pct is the
// total fraction of the trace tapered, split between both ends.
func Taper(x []float64, pct float64) {
	n := len(x)
	if n < 3 || pct <= 0 {
		return
	}
	if pct > 1 {
		pct = 1
	}
	m := int(pct * float64(n) / 2)
	if m < 1 {
		m = 1
	}
	for i := 0; i < m && i < n; i++ {
		w := 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(m)))
		x[i] *= w
		x[n-1-i] *= w
	}
}

// MinMaxNormalize scales x in place to unit maximum amplitude. A flat
// trace is left untouched.
func MinMaxNormalize(x []float64) {
	maxAbs := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return
	}
	for i := range x {
		x[i] /= maxAbs
	}
}

// Resample maps x sampled at fromRate onto toRate using the Wiggins
// interpolant. Rates equal within tolerance return a copy.
func Resample(x []float64, fromRate, toRate float64) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, errors.New("sampling rates must be positive")
	}
	if math.Abs(fromRate-toRate) < 1e-4 {
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	}
	if len(x) < 2 {
		return nil, ErrTooFewKnots
	}
	times := make([]float64, len(x))
	for i := range x {
		times[i] = float64(i) / fromRate
	}
	interp, err := NewWiggins(times, x)
	if err != nil {
		return nil, err
	}
	duration := times[len(times)-1]
	n := int(math.Floor(duration*toRate)) + 1
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = interp.At(float64(k) / toRate)
	}
	return out, nil
}

// StaLta computes a short-term over long-term average characteristic
// function of the squared trace. Output has the same length as x; the
// first lta samples are zero.
func StaLta(x []float64, sta, lta int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if sta < 1 || lta <= sta || n == 0 {
		return out
	}
	energy := make([]float64, n+1)
	for i, v := range x {
		energy[i+1] = energy[i] + v*v
	}
	for i := lta; i < n; i++ {
		short := (energy[i+1] - energy[i+1-sta]) / float64(sta)
		long := (energy[i+1-sta] - energy[i+1-sta-(lta-sta)]) / float64(lta-sta)
		if long > 0 {
			out[i] = short / long
		}
	}
	return out
}
