// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schema

import (
	"errors"
	"fmt"
)

// FirstMotion is the polarity of the first P-wave swing.
type FirstMotion int8

const (
	FirstMotionDown    FirstMotion = -1
	FirstMotionUnknown FirstMotion = 0
	FirstMotionUp      FirstMotion = 1
)

func (f FirstMotion) String() string {
	switch f {
	case FirstMotionUp:
		return "up"
	case FirstMotionDown:
		return "down"
	}
	return "unknown"
}

func (f FirstMotion) Valid() bool { return f >= FirstMotionDown && f <= FirstMotionUp }

// ReviewStatus tracks how far an arrival has made it through review.
type ReviewStatus int8

const (
	ReviewAutomatic ReviewStatus = iota
	ReviewHuman
	ReviewFinalized
)

func (r ReviewStatus) String() string {
	switch r {
	case ReviewHuman:
		return "human"
	case ReviewFinalized:
		return "finalized"
	}
	return "automatic"
}

// Arrival is a pick that has been refined and associated to an event.
// It references the originating pick by identifier rather than holding it.
type Arrival struct {
	ChannelID
	Time           int64        `cbor:"Time" json:"time"`
	Phase          Phase        `cbor:"Phase" json:"phase"`
	Identifier     uint64       `cbor:"Identifier" json:"identifier"`
	PickIdentifier uint64       `cbor:"PickIdentifier" json:"pickIdentifier"`
	FirstMotion    FirstMotion  `cbor:"FirstMotion" json:"firstMotion"`
	ReviewStatus   ReviewStatus `cbor:"ReviewStatus" json:"reviewStatus"`
	StandardError  float64      `cbor:"StandardError" json:"standardError"`
	TravelTime     *float64     `cbor:"TravelTime,omitempty" json:"travelTime,omitempty"`
	Quality        *float64     `cbor:"Quality,omitempty" json:"quality,omitempty"`
	Subsource      *string      `cbor:"Subsource,omitempty" json:"subsource,omitempty"`
}

const arrivalTypeTag = "sfb.broadcasts.arrival"

func (*Arrival) TypeTag() string { return arrivalTypeTag }
func (*Arrival) Version() string { return "1.0.0" }

func (a *Arrival) NewEmpty() Message { return &Arrival{} }

func (a *Arrival) Clone() Message {
	b := *a
	if a.TravelTime != nil {
		v := *a.TravelTime
		b.TravelTime = &v
	}
	if a.Quality != nil {
		v := *a.Quality
		b.Quality = &v
	}
	if a.Subsource != nil {
		v := *a.Subsource
		b.Subsource = &v
	}
	return &b
}

func (a *Arrival) HasTravelTime() bool { return a.TravelTime != nil }
func (a *Arrival) HasQuality() bool    { return a.Quality != nil }
func (a *Arrival) HasSubsource() bool  { return a.Subsource != nil }

var ErrIncompleteArrival = errors.New("arrival is missing required fields")

func (a *Arrival) Validate() error {
	if a.Network == "" || a.Station == "" {
		return ErrIncompleteArrival
	}
	if !a.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %d", ErrIncompleteArrival, a.Phase)
	}
	if !a.FirstMotion.Valid() {
		return fmt.Errorf("unknown first motion %d", a.FirstMotion)
	}
	if a.Quality != nil && (*a.Quality < 0 || *a.Quality > 1) {
		return errors.New("quality must be in [0,1]")
	}
	return nil
}
