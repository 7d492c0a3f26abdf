// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package inference defines the opaque model capability the ML services
// are built on, plus the shared preprocessing chain that brings raw
// telemetry onto a model's native sample grid.
//
// The numeric kernels themselves are out of scope: a Model is anything
// that maps an input tensor to an output tensor. The reference backends in
// reference.go are deterministic characteristic-function implementations
// used when no external weights are configured, which keeps the full
// pipeline runnable end to end.
package inference

import (
	"errors"
	"fmt"
	"os"
)

// NativeSamplingRate is the sample grid every current model runs on.
const NativeSamplingRate = 100.0

// Device selects the compute target for a model.
type Device int

const (
	CPU Device = iota
	GPU
)

func ParseDevice(s string) (Device, error) {
	switch s {
	case "", "CPU", "cpu":
		return CPU, nil
	case "GPU", "gpu":
		return GPU, nil
	}
	return CPU, fmt.Errorf("unknown device %q", s)
}

// Model is an opaque inference capability. Implementations are immutable
// after construction; Infer may run concurrently from many workers.
type Model interface {
	// Infer maps one input tensor (component x sample) to the output
	// vector. The input length has already been validated by the caller.
	Infer(signals [][]float64) ([]float64, error)
	// Components is the number of input components (1 or 3).
	Components() int
	// SamplingRate is the native input rate in Hz.
	SamplingRate() float64
}

// Options configures model loading for every ML service.
type Options struct {
	// WeightsFile points at the model artifact. Empty selects the
	// built-in reference backend.
	WeightsFile string
	Device      Device
}

var ErrWeightsNotFound = errors.New("model weights file not found")

// checkWeights verifies the artifact exists when one was configured.
func checkWeights(opts Options) error {
	if opts.WeightsFile == "" {
		return nil
	}
	if _, err := os.Stat(opts.WeightsFile); err != nil {
		return fmt.Errorf("%w: %s", ErrWeightsNotFound, opts.WeightsFile)
	}
	return nil
}
