// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packetcache

import (
	"fmt"
	"math"

	"github.com/SeisFab/sf-backbone/internal/dsp"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// segment is a run of samples with no internal gap wider than the policy
// allows. Times are seconds relative to the query origin.
type segment struct {
	times  []float64
	values []float64
}

// GetUniform extracts [t0,t1] from one channel as a dense uniform vector
// of ceil((t1-t0)*rate)+1 samples. Irregular source samples are resampled
// with Wiggins interpolation; spans wider than 1.5 nominal sample periods
// are zero-filled and reported in the gap list.
func (c *Cache) GetUniform(channel string, t0, t1 int64, rate float64) ([]float64, []Gap, error) {
	cacheQueries.WithLabelValues("uniform").Inc()
	if t1 <= t0 {
		return nil, nil, fmt.Errorf("window [%d,%d] is empty", t0, t1)
	}
	if rate <= 0 {
		return nil, nil, schema.ErrInvalidSamplingRate
	}
	hits, err := c.snapshot(channel, t0, t1)
	if err != nil {
		return nil, nil, err
	}

	nominalRate := hits[0].SamplingRate
	maxSpacing := gapFactor / nominalRate

	segments := buildSegments(hits, t0, maxSpacing)

	n := int(math.Ceil(float64(t1-t0)/1e6*rate)) + 1
	out := make([]float64, n)
	covered := make([]bool, n)

	for _, seg := range segments {
		interp, err := dsp.NewWiggins(seg.times, seg.values)
		if err != nil {
			// Single-sample segment: snap it onto the nearest grid point.
			if len(seg.times) == 1 {
				k := int(math.Round(seg.times[0] * rate))
				if k >= 0 && k < n {
					out[k] = seg.values[0]
					covered[k] = true
				}
			}
			continue
		}
		segStart, segEnd := seg.times[0], seg.times[len(seg.times)-1]
		kFirst := int(math.Ceil(segStart*rate - 1e-9))
		kLast := int(math.Floor(segEnd*rate + 1e-9))
		if kFirst < 0 {
			kFirst = 0
		}
		if kLast >= n {
			kLast = n - 1
		}
		for k := kFirst; k <= kLast; k++ {
			out[k] = interp.At(float64(k) / rate)
			covered[k] = true
		}
	}

	gaps := collectGaps(covered, t0, rate)
	return out, gaps, nil
}

// buildSegments merges the packet samples into gap-free runs. Sample times
// are seconds relative to t0. Overlapping samples (identical timestamps
// across packets) keep the later packet's value.
func buildSegments(packets []*schema.DataPacket, t0 int64, maxSpacing float64) []segment {
	var segs []segment
	var cur segment
	lastTime := math.Inf(-1)

	flush := func() {
		if len(cur.times) > 0 {
			segs = append(segs, cur)
			cur = segment{}
		}
	}

	for _, p := range packets {
		period := 1.0 / p.SamplingRate
		base := float64(p.StartTime-t0) / 1e6
		for i, v := range p.Samples {
			t := base + float64(i)*period
			if t <= lastTime+1e-9 {
				if len(cur.values) > 0 && t > lastTime-1e-9 {
					cur.values[len(cur.values)-1] = v
				}
				continue
			}
			if t-lastTime > maxSpacing && len(cur.times) > 0 {
				flush()
			}
			cur.times = append(cur.times, t)
			cur.values = append(cur.values, v)
			lastTime = t
		}
	}
	flush()
	return segs
}

// collectGaps turns the uncovered grid runs into reported gaps.
func collectGaps(covered []bool, t0 int64, rate float64) []Gap {
	var gaps []Gap
	n := len(covered)
	for k := 0; k < n; {
		if covered[k] {
			k++
			continue
		}
		start := k
		for k < n && !covered[k] {
			k++
		}
		gaps = append(gaps, Gap{
			Start: t0 + int64(math.Round(float64(start)/rate*1e6)),
			End:   t0 + int64(math.Round(float64(k-1)/rate*1e6)),
		})
	}
	return gaps
}
