// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/geo"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

func testConn(t *testing.T) *DBConnection {
	t.Helper()
	conn, err := Connect(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestArrivalSinkInsert(t *testing.T) {
	sink, err := NewArrivalSink(testConn(t))
	require.NoError(t, err)

	tt := 4.2
	quality := 0.9
	sub := "sfb"
	a := &schema.Arrival{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
		},
		Time:           1628803601000000,
		Phase:          schema.PhaseP,
		Identifier:     9,
		PickIdentifier: 42,
		FirstMotion:    schema.FirstMotionUp,
		ReviewStatus:   schema.ReviewAutomatic,
		StandardError:  0.05,
		TravelTime:     &tt,
		Quality:        &quality,
		Subsource:      &sub,
	}
	require.NoError(t, sink.Insert(a))
	require.NoError(t, sink.Insert(a))

	n, err := sink.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestArrivalSinkRejectsIncomplete(t *testing.T) {
	sink, err := NewArrivalSink(testConn(t))
	require.NoError(t, err)
	bad := &schema.Arrival{Phase: schema.PhaseP}
	assert.ErrorIs(t, sink.Insert(bad), schema.ErrIncompleteArrival)
}

func TestStationSource(t *testing.T) {
	conn := testConn(t)
	src, err := LoadStations(conn)
	require.NoError(t, err)
	_, found := src.Lookup("UU", "FORK")
	assert.False(t, found)

	_, err = conn.DB.Exec(
		`INSERT INTO station (network, station, latitude, longitude, elevation)
		 VALUES ('UU', 'FORK', 38.7, -112.5, 1700)`)
	require.NoError(t, err)

	src, err = LoadStations(conn)
	require.NoError(t, err)
	pt, found := src.Lookup("UU", "FORK")
	require.True(t, found)
	assert.Equal(t, geo.Point{Latitude: 38.7, Longitude: -112.5, Elevation: 1700}, pt)
}

func TestStaticStationSourceCopies(t *testing.T) {
	in := map[string]geo.Point{"UU.FORK": {Latitude: 1}}
	src := NewStaticStationSource(in)
	in["UU.FORK"] = geo.Point{Latitude: 9}
	pt, found := src.Lookup("UU", "FORK")
	require.True(t, found)
	assert.Equal(t, 1.0, pt.Latitude)
}
