// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package geo provides the spherical-earth geometry used by the locator
// and the travel-time calculator.
package geo

import "math"

// EarthRadiusMeters is the mean radius used for all distance work.
const EarthRadiusMeters = 6371000.0

// Point is a geographic position. Elevation is meters above sea level.
type Point struct {
	Latitude  float64
	Longitude float64
	Elevation float64
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the great-circle surface distance in meters.
func Distance(a, b Point) float64 {
	la1, lo1 := radians(a.Latitude), radians(a.Longitude)
	la2, lo2 := radians(b.Latitude), radians(b.Longitude)
	dla := la2 - la1
	dlo := lo2 - lo1
	h := math.Sin(dla/2)*math.Sin(dla/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dlo/2)*math.Sin(dlo/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Azimuth returns the initial bearing from a to b in degrees [0,360).
func Azimuth(a, b Point) float64 {
	la1, lo1 := radians(a.Latitude), radians(a.Longitude)
	la2, lo2 := radians(b.Latitude), radians(b.Longitude)
	dlo := lo2 - lo1
	y := math.Sin(dlo) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dlo)
	az := degrees(math.Atan2(y, x))
	if az < 0 {
		az += 360
	}
	return az
}

// AzimuthalGap returns the largest angular gap in degrees among the given
// azimuths, or 360 when fewer than two are supplied.
func AzimuthalGap(azimuths []float64) float64 {
	n := len(azimuths)
	if n < 2 {
		return 360
	}
	sorted := make([]float64, n)
	copy(sorted, azimuths)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	gap := sorted[0] + 360 - sorted[n-1]
	for i := 1; i < n; i++ {
		if d := sorted[i] - sorted[i-1]; d > gap {
			gap = d
		}
	}
	return gap
}
