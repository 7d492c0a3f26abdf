// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	a := Point{Latitude: 38.0, Longitude: -112.0}
	b := Point{Latitude: 39.0, Longitude: -112.0}
	// One degree of latitude is about 111.2 km on the mean sphere.
	assert.InDelta(t, 111195, Distance(a, b), 50)
	assert.Zero(t, Distance(a, a))
}

func TestAzimuth(t *testing.T) {
	origin := Point{Latitude: 38.0, Longitude: -112.0}
	assert.InDelta(t, 0, Azimuth(origin, Point{Latitude: 39, Longitude: -112}), 1e-6)
	assert.InDelta(t, 180, Azimuth(origin, Point{Latitude: 37, Longitude: -112}), 1e-6)
	assert.InDelta(t, 90, Azimuth(origin, Point{Latitude: 38, Longitude: -111}), 0.5)
	assert.InDelta(t, 270, Azimuth(origin, Point{Latitude: 38, Longitude: -113}), 0.5)
}

func TestAzimuthalGap(t *testing.T) {
	assert.Equal(t, 360.0, AzimuthalGap(nil))
	assert.Equal(t, 360.0, AzimuthalGap([]float64{45}))
	assert.InDelta(t, 90, AzimuthalGap([]float64{0, 90, 180, 270}), 1e-9)
	assert.InDelta(t, 350, AzimuthalGap([]float64{5, 15}), 1e-9)
}
