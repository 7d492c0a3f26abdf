// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dsp holds the small signal-processing kernels shared by the
// packet cache and the inference preprocessing chains.
package dsp

import (
	"errors"
	"math"
	"sort"
)

// wigginsSlopeFloor keeps the slope weights finite on flat segments.
const wigginsSlopeFloor = 1e-30

// Wiggins is a fitted monotone-cubic (Wiggins, 1976) interpolant over an
// irregular sample grid. Node values are reproduced exactly; between nodes
// the cubic Hermite segments use slope-weighted derivatives so the
// interpolant does not overshoot between monotone samples.
type Wiggins struct {
	x []float64
	y []float64
	d []float64
}

var ErrTooFewKnots = errors.New("interpolation requires at least two samples")

// NewWiggins fits the interpolant. x must be strictly increasing; the
// slices are retained, not copied.
func NewWiggins(x, y []float64) (*Wiggins, error) {
	n := len(x)
	if n < 2 || len(y) != n {
		return nil, ErrTooFewKnots
	}

	slopes := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		dx := x[i+1] - x[i]
		if dx <= 0 {
			return nil, errors.New("sample times must be strictly increasing")
		}
		slopes[i] = (y[i+1] - y[i]) / dx
	}

	d := make([]float64, n)
	d[0] = slopes[0]
	d[n-1] = slopes[n-2]
	for i := 1; i < n-1; i++ {
		sl, sr := slopes[i-1], slopes[i]
		if sl*sr <= 0 {
			// Local extremum: a zero derivative keeps the curve inside
			// the data.
			d[i] = 0
			continue
		}
		wl := 1.0 / math.Max(math.Abs(sl), wigginsSlopeFloor)
		wr := 1.0 / math.Max(math.Abs(sr), wigginsSlopeFloor)
		d[i] = (wl*sl + wr*sr) / (wl + wr)
	}

	return &Wiggins{x: x, y: y, d: d}, nil
}

// At evaluates the interpolant at xq. Queries outside the knot span clamp
// to the nearest endpoint value.
func (w *Wiggins) At(xq float64) float64 {
	n := len(w.x)
	if xq <= w.x[0] {
		return w.y[0]
	}
	if xq >= w.x[n-1] {
		return w.y[n-1]
	}
	// Interval such that x[i] <= xq < x[i+1].
	i := sort.SearchFloat64s(w.x, xq)
	if i > 0 && w.x[i] != xq {
		i--
	}
	if w.x[i] == xq {
		return w.y[i]
	}

	h := w.x[i+1] - w.x[i]
	t := (xq - w.x[i]) / h
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h00*w.y[i] + h10*h*w.d[i] + h01*w.y[i+1] + h11*h*w.d[i+1]
}

// Evaluate fills out[k] = At(xq[k]).
func (w *Wiggins) Evaluate(xq, out []float64) {
	for k, q := range xq {
		out[k] = w.At(q)
	}
}

// Span returns the knot extent.
func (w *Wiggins) Span() (lo, hi float64) {
	return w.x[0], w.x[len(w.x)-1]
}
