// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package locator

import (
	"errors"
	"math"

	"github.com/SeisFab/sf-backbone/internal/geo"
	"github.com/SeisFab/sf-backbone/internal/services/traveltime"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Solver defaults.
const (
	defaultDepth  = 8000.0 // m
	maxIterations = 50
	convergenceM  = 10.0 // position step, meters
	convergenceS  = 1e-3 // origin-time step, seconds
)

var errSolverDiverged = errors.New("hypocenter solve did not converge")

// observation is one arrival with its resolved station geometry.
type observation struct {
	station geo.Point
	phase   schema.Phase
	timeSec float64 // observed onset, seconds past a local reference
	weight  float64
}

// solution is the located hypocenter.
type solution struct {
	latitude  float64
	longitude float64
	depth     float64
	timeSec   float64 // origin time, seconds past the same reference

	weightedRMS     float64
	azimuthalGap    float64
	nearestDistance float64
}

// locate runs a damped Gauss-Newton inversion in a local tangent plane
// around the initial guess. fixDepth holds the depth at the free surface.
func locate(calc *traveltime.Calculator, obs []observation, seed *solution, fixDepth bool) (*solution, error) {
	if len(obs) < 3 {
		return nil, errors.New("at least three arrivals are required")
	}

	cur := initialGuess(obs, seed)
	metersPerDegLat := 2 * math.Pi * geo.EarthRadiusMeters / 360

	predict := func(s *solution, o *observation) float64 {
		return s.timeSec + calc.Compute(s.latitude, s.longitude, s.depth, o.station, o.phase)
	}

	nParams := 4
	if fixDepth {
		cur.depth = 0
		nParams = 3
	}

	for iter := 0; iter < maxIterations; iter++ {
		metersPerDegLon := metersPerDegLat * math.Cos(cur.latitude*math.Pi/180)
		if metersPerDegLon < 1 {
			metersPerDegLon = 1
		}

		// Build the weighted normal equations with numerical derivatives
		// in (north, east, depth, t0).
		ata := make([][]float64, nParams)
		atb := make([]float64, nParams)
		for i := range ata {
			ata[i] = make([]float64, nParams)
		}

		const h = 50.0 // finite-difference step, meters
		for i := range obs {
			o := &obs[i]
			res := o.timeSec - predict(cur, o)

			row := make([]float64, nParams)
			north := *cur
			north.latitude += h / metersPerDegLat
			row[0] = (predict(&north, o) - predict(cur, o)) / h
			east := *cur
			east.longitude += h / metersPerDegLon
			row[1] = (predict(&east, o) - predict(cur, o)) / h
			if fixDepth {
				row[2] = 1 // dt/dt0
			} else {
				deep := *cur
				deep.depth += h
				row[2] = (predict(&deep, o) - predict(cur, o)) / h
				row[3] = 1 // dt/dt0
			}

			w2 := o.weight * o.weight
			for a := 0; a < nParams; a++ {
				for b := 0; b < nParams; b++ {
					ata[a][b] += w2 * row[a] * row[b]
				}
				atb[a] += w2 * row[a] * res
			}
		}

		// Levenberg damping keeps the step stable with poor geometry.
		for a := 0; a < nParams; a++ {
			ata[a][a] *= 1.001
			ata[a][a] += 1e-12
		}
		step, err := solveLinear(ata, atb)
		if err != nil {
			return nil, errSolverDiverged
		}

		dn, de := step[0], step[1]
		var dz, dt float64
		if fixDepth {
			dt = step[2]
		} else {
			dz, dt = step[2], step[3]
		}
		// Bound a single step to keep the linearization honest.
		clamp := func(v, lim float64) float64 {
			if v > lim {
				return lim
			}
			if v < -lim {
				return -lim
			}
			return v
		}
		dn = clamp(dn, 50000)
		de = clamp(de, 50000)
		dz = clamp(dz, 20000)

		cur.latitude += dn / metersPerDegLat
		cur.longitude += de / metersPerDegLon
		cur.depth += dz
		cur.timeSec += dt

		if cur.latitude > 90 {
			cur.latitude = 90
		}
		if cur.latitude < -90 {
			cur.latitude = -90
		}
		cur.longitude = schema.NormalizeLongitude180(cur.longitude)
		if cur.depth < 0 {
			cur.depth = 0
		}
		if cur.depth > schema.MaxDepth {
			cur.depth = schema.MaxDepth
		}

		if math.Abs(dn) < convergenceM && math.Abs(de) < convergenceM &&
			math.Abs(dz) < convergenceM && math.Abs(dt) < convergenceS {
			break
		}
	}

	finish(calc, cur, obs)
	return cur, nil
}

// initialGuess starts at the station with the earliest observation.
func initialGuess(obs []observation, seed *solution) *solution {
	if seed != nil {
		s := *seed
		return &s
	}
	earliest := &obs[0]
	for i := range obs {
		if obs[i].timeSec < earliest.timeSec {
			earliest = &obs[i]
		}
	}
	return &solution{
		latitude:  earliest.station.Latitude,
		longitude: earliest.station.Longitude,
		depth:     defaultDepth,
		timeSec:   earliest.timeSec - 2.0,
	}
}

// finish fills the quality measures on a converged solution.
func finish(calc *traveltime.Calculator, s *solution, obs []observation) {
	src := geo.Point{Latitude: s.latitude, Longitude: s.longitude}

	var sumW2, sumW2R2 float64
	azimuths := make([]float64, 0, len(obs))
	nearest := math.Inf(1)
	for i := range obs {
		o := &obs[i]
		res := o.timeSec - s.timeSec - calc.Compute(s.latitude, s.longitude, s.depth, o.station, o.phase)
		w2 := o.weight * o.weight
		sumW2 += w2
		sumW2R2 += w2 * res * res

		azimuths = append(azimuths, geo.Azimuth(src, o.station))
		if d := geo.Distance(src, o.station); d < nearest {
			nearest = d
		}
	}
	if sumW2 > 0 {
		s.weightedRMS = math.Sqrt(sumW2R2 / sumW2)
	}
	s.azimuthalGap = geo.AzimuthalGap(azimuths)
	s.nearestDistance = nearest
}

// solveLinear solves the small dense system A x = b in place by Gaussian
// elimination with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-18 {
			return nil, errors.New("singular system")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		inv := 1 / a[col][col]
		for r := col + 1; r < n; r++ {
			f := a[r][col] * inv
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
