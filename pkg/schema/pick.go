// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schema

import (
	"errors"
	"fmt"
)

// Phase names a seismic arrival type.
type Phase int8

const (
	PhaseP Phase = iota
	PhaseS
)

func (p Phase) String() string {
	switch p {
	case PhaseP:
		return "P"
	case PhaseS:
		return "S"
	}
	return fmt.Sprintf("Phase(%d)", int8(p))
}

func (p Phase) Valid() bool { return p == PhaseP || p == PhaseS }

// DefaultStandardError is the assumed pick timing uncertainty in seconds
// when a producer does not supply one.
const DefaultStandardError = 0.05

// UncertaintyBound is one side of an asymmetric pick uncertainty, expressed
// as a percentile and a perturbation in seconds relative to the onset.
type UncertaintyBound struct {
	Percentile float64 `cbor:"Percentile" json:"percentile"`
	Value      float64 `cbor:"Value" json:"value"`
}

func (b *UncertaintyBound) Validate() error {
	if b.Percentile < 0 || b.Percentile > 100 {
		return errors.New("percentile must be in [0,100]")
	}
	return nil
}

// Pick is a timestamped detection of a phase onset on a single channel.
// Time is microseconds since the epoch. The identifier is globally unique
// and handed out by the incrementer service.
type Pick struct {
	ChannelID
	Time          int64             `cbor:"Time" json:"time"`
	PhaseHint     Phase             `cbor:"PhaseHint" json:"phaseHint"`
	Identifier    uint64            `cbor:"Identifier" json:"identifier"`
	StandardError float64           `cbor:"StandardError" json:"standardError"`
	LowerBound    *UncertaintyBound `cbor:"LowerUncertaintyBound,omitempty" json:"lowerUncertaintyBound,omitempty"`
	UpperBound    *UncertaintyBound `cbor:"UpperUncertaintyBound,omitempty" json:"upperUncertaintyBound,omitempty"`
	// Posterior carries the detector confidence that produced this pick.
	// Used when deduplicating near-coincident picks.
	Posterior *float64 `cbor:"Posterior,omitempty" json:"posterior,omitempty"`
	Algorithm string   `cbor:"Algorithm,omitempty" json:"algorithm,omitempty"`
	// FirstMotion is filled by the refinement stage on P picks.
	FirstMotion FirstMotion `cbor:"FirstMotion,omitempty" json:"firstMotion,omitempty"`
}

const pickTypeTag = "sfb.broadcasts.pick"

func (*Pick) TypeTag() string { return pickTypeTag }
func (*Pick) Version() string { return "1.0.0" }

func (p *Pick) NewEmpty() Message { return &Pick{} }

func (p *Pick) Clone() Message {
	q := *p
	if p.LowerBound != nil {
		lb := *p.LowerBound
		q.LowerBound = &lb
	}
	if p.UpperBound != nil {
		ub := *p.UpperBound
		q.UpperBound = &ub
	}
	if p.Posterior != nil {
		v := *p.Posterior
		q.Posterior = &v
	}
	return &q
}

func (p *Pick) HasLowerBound() bool { return p.LowerBound != nil }
func (p *Pick) HasUpperBound() bool { return p.UpperBound != nil }
func (p *Pick) HasPosterior() bool  { return p.Posterior != nil }

func (p *Pick) Validate() error {
	if err := p.ChannelID.Validate(); err != nil {
		return err
	}
	if !p.PhaseHint.Valid() {
		return fmt.Errorf("unknown phase hint %d", p.PhaseHint)
	}
	if p.StandardError < 0 {
		return errors.New("standard error must be non-negative")
	}
	if p.LowerBound != nil {
		if err := p.LowerBound.Validate(); err != nil {
			return err
		}
	}
	if p.UpperBound != nil {
		if err := p.UpperBound.Validate(); err != nil {
			return err
		}
	}
	if p.LowerBound != nil && p.UpperBound != nil &&
		p.LowerBound.Value > p.UpperBound.Value {
		return errors.New("lower uncertainty bound exceeds upper bound")
	}
	return nil
}
