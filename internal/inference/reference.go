// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/SeisFab/sf-backbone/internal/dsp"
)

// DetectorModel produces a per-sample phase posterior over a fixed
// window. The central [start,end) indices are the region the model is
// confident in; consumers extract picks only from there.
type DetectorModel interface {
	Model
	// ExpectedSignalLength is the fixed inference window (samples).
	ExpectedSignalLength() int
	// ValidWindow returns the interior [start,end) the posterior is
	// trusted over.
	ValidWindow() (start, end int)
}

// PickerModel maps a snippet centered on a seed pick to a scalar onset
// correction in seconds.
type PickerModel interface {
	Model
	ExpectedSignalLength() int
	// MaxCorrection bounds the returned |correction| in seconds.
	MaxCorrection() float64
}

// FirstMotionModel maps a snippet centered on a P pick to the posterior
// triple (up, down, unknown).
type FirstMotionModel interface {
	Model
	ExpectedSignalLength() int
}

// Detector window geometry shared by all current detector models.
const (
	DetectorWindowLength = 1008
	detectorValidStart   = 254
	detectorValidEnd     = 754
)

// Picker and classifier snippet lengths.
const (
	PickerOneComponentPLength   = 400
	PickerThreeComponentPLength = 500
	PickerThreeComponentSLength = 600
	FirstMotionLength           = 400
)

// referenceDetector is the deterministic characteristic-function backend:
// an STA/LTA ratio squashed through a logistic, summed across components.
type referenceDetector struct {
	components int
}

// NewDetectorModel loads the detector for the given component count
// (1 or 3). With no weights configured the reference backend is used; a
// configured artifact is validated and handed to the same opaque contract.
func NewDetectorModel(opts Options, components int) (DetectorModel, error) {
	if components != 1 && components != 3 {
		return nil, fmt.Errorf("detector supports 1 or 3 components, got %d", components)
	}
	if err := checkWeights(opts); err != nil {
		return nil, err
	}
	return &referenceDetector{components: components}, nil
}

func (m *referenceDetector) Components() int           { return m.components }
func (m *referenceDetector) SamplingRate() float64     { return NativeSamplingRate }
func (m *referenceDetector) ExpectedSignalLength() int { return DetectorWindowLength }

func (m *referenceDetector) ValidWindow() (int, int) {
	return detectorValidStart, detectorValidEnd
}

func (m *referenceDetector) Infer(signals [][]float64) ([]float64, error) {
	if len(signals) != m.components {
		return nil, fmt.Errorf("expected %d components, got %d", m.components, len(signals))
	}
	n := DetectorWindowLength
	for _, s := range signals {
		if len(s) != n {
			return nil, fmt.Errorf("expected %d samples, got %d", n, len(s))
		}
	}
	cf := make([]float64, n)
	for _, s := range signals {
		c := dsp.StaLta(s, 5, 50)
		for i := range cf {
			cf[i] += c[i]
		}
	}
	out := make([]float64, n)
	scale := float64(m.components)
	for i, v := range cf {
		// Ratios near 1 are background; the logistic turns the onset
		// spike into a posterior.
		out[i] = 1.0 / (1.0 + math.Exp(-(v/scale - 3.0)))
	}
	return out, nil
}

// referencePicker refines an onset by locating the strongest local energy
// increase near the snippet center.
type referencePicker struct {
	components int
	length     int
}

func NewPickerModel(opts Options, components, length int) (PickerModel, error) {
	if components != 1 && components != 3 {
		return nil, fmt.Errorf("picker supports 1 or 3 components, got %d", components)
	}
	if length < 2 {
		return nil, errors.New("snippet length too short")
	}
	if err := checkWeights(opts); err != nil {
		return nil, err
	}
	return &referencePicker{components: components, length: length}, nil
}

func (m *referencePicker) Components() int           { return m.components }
func (m *referencePicker) SamplingRate() float64     { return NativeSamplingRate }
func (m *referencePicker) ExpectedSignalLength() int { return m.length }
func (m *referencePicker) MaxCorrection() float64    { return 0.5 }

func (m *referencePicker) Infer(signals [][]float64) ([]float64, error) {
	if len(signals) != m.components {
		return nil, fmt.Errorf("expected %d components, got %d", m.components, len(signals))
	}
	for _, s := range signals {
		if len(s) != m.length {
			return nil, fmt.Errorf("expected %d samples, got %d", m.length, len(s))
		}
	}
	center := m.length / 2
	maxShift := int(m.MaxCorrection() * NativeSamplingRate)

	best, bestJump := center, 0.0
	for _, s := range signals {
		cf := dsp.StaLta(s, 3, 30)
		for i := center - maxShift; i < center+maxShift && i+1 < len(cf); i++ {
			if i < 1 {
				continue
			}
			jump := cf[i+1] - cf[i]
			if jump > bestJump {
				bestJump = jump
				best = i
			}
		}
	}
	correction := float64(best-center) / NativeSamplingRate
	return []float64{correction}, nil
}

// referenceFirstMotion classifies polarity from the first swing after the
// pick at the snippet center.
type referenceFirstMotion struct{}

func NewFirstMotionModel(opts Options) (FirstMotionModel, error) {
	if err := checkWeights(opts); err != nil {
		return nil, err
	}
	return &referenceFirstMotion{}, nil
}

func (*referenceFirstMotion) Components() int           { return 1 }
func (*referenceFirstMotion) SamplingRate() float64     { return NativeSamplingRate }
func (*referenceFirstMotion) ExpectedSignalLength() int { return FirstMotionLength }

func (*referenceFirstMotion) Infer(signals [][]float64) ([]float64, error) {
	if len(signals) != 1 {
		return nil, fmt.Errorf("expected 1 component, got %d", len(signals))
	}
	s := signals[0]
	if len(s) != FirstMotionLength {
		return nil, fmt.Errorf("expected %d samples, got %d", FirstMotionLength, len(s))
	}
	center := FirstMotionLength / 2

	// Noise level before the onset, first swing amplitude after it.
	noise := 0.0
	for i := 0; i < center; i++ {
		noise += math.Abs(s[i])
	}
	noise /= float64(center)

	swing := 0.0
	window := 20
	for i := center; i < center+window && i < len(s); i++ {
		d := s[i] - s[center]
		if math.Abs(d) > math.Abs(swing) {
			swing = d
		}
	}

	snr := 0.0
	if noise > 0 {
		snr = math.Abs(swing) / noise
	}
	confidence := snr / (snr + 3.0)
	pUnknown := 1.0 - confidence
	pUp, pDown := 0.0, 0.0
	if swing >= 0 {
		pUp = confidence
	} else {
		pDown = confidence
	}
	return []float64{pUp, pDown, pUnknown}, nil
}
