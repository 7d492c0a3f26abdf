// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schema

import (
	"errors"
	"math"
	"slices"
	"time"
)

// Sampling rates within this tolerance (Hz) are considered equal.
const SamplingRateTolerance = 1e-4

var (
	ErrNoSamples           = errors.New("packet contains no samples")
	ErrInvalidSamplingRate = errors.New("sampling rate must be positive")
)

// DataPacket is a contiguous run of uniformly sampled ground motion on one
// channel. StartTime is microseconds since the epoch (UTC).
type DataPacket struct {
	ChannelID
	StartTime    int64     `cbor:"StartTime" json:"startTime"`
	SamplingRate float64   `cbor:"SamplingRate" json:"samplingRate"`
	Samples      []float64 `cbor:"Samples" json:"samples"`
}

const dataPacketTypeTag = "sfb.broadcasts.dataPacket"

func (*DataPacket) TypeTag() string { return dataPacketTypeTag }
func (*DataPacket) Version() string { return "1.0.0" }

func (p *DataPacket) NewEmpty() Message { return &DataPacket{} }

func (p *DataPacket) Clone() Message {
	q := *p
	q.Samples = slices.Clone(p.Samples)
	return &q
}

// EndTime is the time of the final sample in microseconds since the epoch.
func (p *DataPacket) EndTime() int64 {
	if len(p.Samples) == 0 || p.SamplingRate <= 0 {
		return p.StartTime
	}
	return p.StartTime + int64(math.Round(
		float64(len(p.Samples)-1)/p.SamplingRate*1e6))
}

// SamplePeriod is the nominal spacing between samples.
func (p *DataPacket) SamplePeriod() time.Duration {
	if p.SamplingRate <= 0 {
		return 0
	}
	return time.Duration(1e9 / p.SamplingRate)
}

func (p *DataPacket) Validate() error {
	if err := p.ChannelID.Validate(); err != nil {
		return err
	}
	if p.SamplingRate <= 0 {
		return ErrInvalidSamplingRate
	}
	if len(p.Samples) < 1 {
		return ErrNoSamples
	}
	return nil
}

// ProbabilityPacket broadcasts a dense per-sample phase posterior produced
// by a detector. Values are in [0,1].
type ProbabilityPacket struct {
	ChannelID
	StartTime        int64     `cbor:"StartTime" json:"startTime"`
	SamplingRate     float64   `cbor:"SamplingRate" json:"samplingRate"`
	Samples          []float64 `cbor:"Samples" json:"samples"`
	Algorithm        string    `cbor:"Algorithm" json:"algorithm"`
	OriginalChannels []string  `cbor:"OriginalChannels" json:"originalChannels"`
	PositiveClass    string    `cbor:"PositiveClassName" json:"positiveClassName"`
	NegativeClass    string    `cbor:"NegativeClassName" json:"negativeClassName"`
}

const probabilityPacketTypeTag = "sfb.broadcasts.probabilityPacket"

func (*ProbabilityPacket) TypeTag() string { return probabilityPacketTypeTag }
func (*ProbabilityPacket) Version() string { return "1.0.0" }

func (p *ProbabilityPacket) NewEmpty() Message { return &ProbabilityPacket{} }

func (p *ProbabilityPacket) Clone() Message {
	q := *p
	q.Samples = slices.Clone(p.Samples)
	q.OriginalChannels = slices.Clone(p.OriginalChannels)
	return &q
}

func (p *ProbabilityPacket) EndTime() int64 {
	d := DataPacket{StartTime: p.StartTime, SamplingRate: p.SamplingRate, Samples: p.Samples}
	return d.EndTime()
}

func (p *ProbabilityPacket) Validate() error {
	d := DataPacket{ChannelID: p.ChannelID, StartTime: p.StartTime,
		SamplingRate: p.SamplingRate, Samples: p.Samples}
	if err := d.Validate(); err != nil {
		return err
	}
	for _, v := range p.Samples {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return errors.New("posterior values must be in [0,1]")
		}
	}
	return nil
}
