// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package locator

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/geo"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/services/traveltime"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

type mapDirectory map[string]geo.Point

func (m mapDirectory) Lookup(network, station string) (geo.Point, bool) {
	p, ok := m[network+"."+station]
	return p, ok
}

var testStations = mapDirectory{
	"UU.FORK": {Latitude: 38.70, Longitude: -112.50, Elevation: 1700},
	"UU.CVRU": {Latitude: 38.30, Longitude: -112.50, Elevation: 1800},
	"UU.MSU":  {Latitude: 38.30, Longitude: -113.10, Elevation: 1500},
	"UU.SRU":  {Latitude: 38.70, Longitude: -113.10, Elevation: 2000},
}

const (
	truthLat   = 38.52
	truthLon   = -112.83
	truthDepth = 7000.0
	truthTime  = int64(1628803600000000)
)

func synthArrival(station string, phase schema.Phase, calc *traveltime.Calculator) schema.Arrival {
	pt := testStations["UU."+station]
	tt := calc.Compute(truthLat, truthLon, truthDepth, pt, phase)
	channel := "HHZ"
	if phase == schema.PhaseS {
		channel = "HHN"
	}
	return schema.Arrival{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: station, Channel: channel, LocationCode: "01",
		},
		Time:          truthTime + int64(math.Round(tt*1e6)),
		Phase:         phase,
		StandardError: 0.05,
	}
}

func synthOrigin(calc *traveltime.Calculator) schema.Origin {
	var o schema.Origin
	for _, sta := range []string{"FORK", "CVRU", "MSU", "SRU"} {
		o.Arrivals = append(o.Arrivals,
			synthArrival(sta, schema.PhaseP, calc),
			synthArrival(sta, schema.PhaseS, calc))
	}
	return o
}

func TestLocateRecoversSyntheticTruth(t *testing.T) {
	calc := traveltime.NewCalculator(traveltime.DefaultVelocityModel())
	svc := NewService(calc, testStations, zerolog.Nop())

	reply := svc.Handle(&Request{Origin: synthOrigin(calc), Identifier: 5})
	resp, ok := reply.(*Response)
	require.True(t, ok)
	require.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 5, resp.Identifier)

	got := resp.Origin
	mislocation := geo.Distance(
		geo.Point{Latitude: got.Latitude, Longitude: got.Longitude},
		geo.Point{Latitude: truthLat, Longitude: truthLon})
	assert.Less(t, mislocation, 5000.0, "epicenter within 5 km")

	require.True(t, got.HasWeightedRMS())
	assert.LessOrEqual(t, *got.WeightedRMS, 0.5)
	require.True(t, got.HasAzimuthalGap())
	assert.Greater(t, *got.AzimuthalGap, 0.0)
	assert.LessOrEqual(t, *got.AzimuthalGap, 360.0)
	require.True(t, got.HasNearestDistance())
	assert.GreaterOrEqual(t, *got.NearestDistance, 0.0)

	assert.InDelta(t, float64(truthTime), float64(got.Time), 2e6,
		"origin time within 2 s")

	for _, a := range got.Arrivals {
		require.True(t, a.HasTravelTime())
		assert.Greater(t, *a.TravelTime, 0.0)
	}
}

func TestLocateRejectsDuplicatePhases(t *testing.T) {
	calc := traveltime.NewCalculator(traveltime.DefaultVelocityModel())
	svc := NewService(calc, testStations, zerolog.Nop())

	o := synthOrigin(calc)
	dup := o.Arrivals[0]
	dup.Channel = "HHE"
	o.Arrivals = append(o.Arrivals, dup)

	resp := svc.Handle(&Request{Origin: o}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestLocateRejectsSBeforeP(t *testing.T) {
	calc := traveltime.NewCalculator(traveltime.DefaultVelocityModel())
	svc := NewService(calc, testStations, zerolog.Nop())

	o := synthOrigin(calc)
	for i := range o.Arrivals {
		if o.Arrivals[i].Station == "FORK" && o.Arrivals[i].Phase == schema.PhaseS {
			o.Arrivals[i].Time = truthTime - 1000000
		}
	}
	resp := svc.Handle(&Request{Origin: o}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestLocateRejectsUnknownStation(t *testing.T) {
	calc := traveltime.NewCalculator(traveltime.DefaultVelocityModel())
	svc := NewService(calc, testStations, zerolog.Nop())

	o := synthOrigin(calc)
	o.Arrivals[0].Station = "NOPE"
	resp := svc.Handle(&Request{Origin: o}).(*Response)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestLocateHonorsSeedHint(t *testing.T) {
	calc := traveltime.NewCalculator(traveltime.DefaultVelocityModel())
	svc := NewService(calc, testStations, zerolog.Nop())

	req := &Request{Origin: synthOrigin(calc), HasSeed: true}
	req.Origin.Latitude = truthLat + 0.05
	req.Origin.Longitude = truthLon - 0.05
	req.Origin.Depth = 5000
	req.Origin.Time = truthTime - 500000

	resp := svc.Handle(req).(*Response)
	require.Equal(t, service.Success, resp.ReturnCode)
	mislocation := geo.Distance(
		geo.Point{Latitude: resp.Origin.Latitude, Longitude: resp.Origin.Longitude},
		geo.Point{Latitude: truthLat, Longitude: truthLon})
	assert.Less(t, mislocation, 5000.0)
}
