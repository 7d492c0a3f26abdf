// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"fmt"
	"sync"

	"github.com/SeisFab/sf-backbone/internal/geo"
)

const stationDDL = `
CREATE TABLE IF NOT EXISTS station (
	network   TEXT NOT NULL,
	station   TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	elevation REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (network, station)
);`

// StationSource is the read-only station metadata view the locator and
// travel-time services resolve coordinates through. Rows are loaded once
// and cached; the metadata system feeding the table is out of scope.
type StationSource struct {
	mu       sync.RWMutex
	stations map[string]geo.Point
}

type stationRow struct {
	Network   string  `db:"network"`
	Station   string  `db:"station"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
	Elevation float64 `db:"elevation"`
}

// LoadStations reads the station table into memory.
func LoadStations(conn *DBConnection) (*StationSource, error) {
	if _, err := conn.DB.Exec(stationDDL); err != nil {
		return nil, fmt.Errorf("preparing station table: %w", err)
	}
	var rows []stationRow
	if err := conn.DB.Select(&rows, `SELECT network, station, latitude, longitude, elevation FROM station`); err != nil {
		return nil, err
	}
	src := &StationSource{stations: make(map[string]geo.Point, len(rows))}
	for _, r := range rows {
		src.stations[r.Network+"."+r.Station] = geo.Point{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Elevation: r.Elevation,
		}
	}
	return src, nil
}

// NewStaticStationSource builds a source from an in-memory table. Used by
// tests and single-process deployments.
func NewStaticStationSource(stations map[string]geo.Point) *StationSource {
	copied := make(map[string]geo.Point, len(stations))
	for k, v := range stations {
		copied[k] = v
	}
	return &StationSource{stations: copied}
}

// Lookup resolves one station's coordinates.
func (s *StationSource) Lookup(network, station string) (geo.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.stations[network+"."+station]
	return p, ok
}
