// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

const arrivalDDL = `
CREATE TABLE IF NOT EXISTS arrival (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier     INTEGER NOT NULL,
	pick_id        INTEGER NOT NULL,
	network        TEXT NOT NULL,
	station        TEXT NOT NULL,
	channel        TEXT NOT NULL,
	location_code  TEXT NOT NULL,
	phase          TEXT NOT NULL,
	time_us        INTEGER NOT NULL,
	first_motion   INTEGER NOT NULL DEFAULT 0,
	review_status  TEXT NOT NULL DEFAULT 'automatic',
	standard_error REAL NOT NULL,
	travel_time    REAL,
	quality        REAL,
	subsource      TEXT
);
CREATE INDEX IF NOT EXISTS idx_arrival_time ON arrival (time_us);`

// ArrivalSink is the write-only boundary to the downstream catalog. The
// external system owns the real schema; this mirror keeps the pipeline
// testable against sqlite.
type ArrivalSink struct {
	conn *DBConnection
}

func NewArrivalSink(conn *DBConnection) (*ArrivalSink, error) {
	if _, err := conn.DB.Exec(arrivalDDL); err != nil {
		return nil, fmt.Errorf("preparing arrival sink: %w", err)
	}
	return &ArrivalSink{conn: conn}, nil
}

// Insert writes one associated arrival. Arrivals are value types; the
// sink never reads them back.
func (s *ArrivalSink) Insert(a *schema.Arrival) error {
	if err := a.Validate(); err != nil {
		return err
	}
	builder := sq.Insert("arrival").
		Columns("identifier", "pick_id", "network", "station", "channel",
			"location_code", "phase", "time_us", "first_motion",
			"review_status", "standard_error", "travel_time", "quality",
			"subsource").
		Values(a.Identifier, a.PickIdentifier, a.Network, a.Station,
			a.Channel, a.LocationCode, a.Phase.String(), a.Time,
			a.FirstMotion, a.ReviewStatus.String(), a.StandardError,
			a.TravelTime, a.Quality, a.Subsource)
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn.DB.Exec(query, args...)
	return err
}

// Count reports the stored arrival rows. Test support.
func (s *ArrivalSink) Count() (int, error) {
	var n int
	err := s.conn.DB.Get(&n, `SELECT COUNT(*) FROM arrival`)
	return n, err
}
