// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package detector

import (
	"math"
	"time"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Pick extraction defaults.
const (
	// DefaultPickThreshold is the posterior a sample must exceed to open
	// a candidate onset.
	DefaultPickThreshold = 0.9
	// DefaultMinPickSeparation collapses onsets closer than this.
	DefaultMinPickSeparation = 500 * time.Millisecond
)

type excursion struct {
	peakIdx int
	peakVal float64
}

// ExtractPicks scans a probability packet for threshold excursions and
// returns one pick per excursion, timed at the posterior maximum.
// Excursions with peaks closer than minSeparation merge into the
// stronger one. The picks carry no identifier yet; the incrementer
// assigns those before broadcast.
func ExtractPicks(pp *schema.ProbabilityPacket, phase schema.Phase,
	threshold float64, minSeparation time.Duration,
) []schema.Pick {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultPickThreshold
	}
	if minSeparation <= 0 {
		minSeparation = DefaultMinPickSeparation
	}
	minGapSamples := int(minSeparation.Seconds() * pp.SamplingRate)

	var excursions []excursion
	open := false
	var cur excursion
	for i, v := range pp.Samples {
		switch {
		case v >= threshold && !open:
			open = true
			cur = excursion{peakIdx: i, peakVal: v}
		case v >= threshold:
			if v > cur.peakVal {
				cur = excursion{peakIdx: i, peakVal: v}
			}
		case open:
			open = false
			excursions = append(excursions, cur)
		}
	}
	if open {
		excursions = append(excursions, cur)
	}

	// Merge near-coincident excursions, stronger peak wins.
	merged := excursions[:0]
	for _, e := range excursions {
		if n := len(merged); n > 0 && e.peakIdx-merged[n-1].peakIdx < minGapSamples {
			if e.peakVal > merged[n-1].peakVal {
				merged[n-1] = e
			}
			continue
		}
		merged = append(merged, e)
	}

	periodMuS := 1e6 / pp.SamplingRate
	picks := make([]schema.Pick, 0, len(merged))
	for _, e := range merged {
		posterior := e.peakVal
		picks = append(picks, schema.Pick{
			ChannelID:     pp.ChannelID,
			Time:          pp.StartTime + int64(math.Round(float64(e.peakIdx)*periodMuS)),
			PhaseHint:     phase,
			StandardError: schema.DefaultStandardError,
			Posterior:     &posterior,
			Algorithm:     pp.Algorithm,
		})
	}
	return picks
}
