// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package service provides the scalable worker harness every inference
// service runs on: a pool of replier loops behind the router, a shared
// lifecycle state machine, and the reply return-code vocabulary.
//
// Workers never share mutable state beyond the service implementation
// itself; implementations keep their model read-only after initialization
// so concurrent handling is safe.
package service

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/transport"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

var (
	requestsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sfb",
		Subsystem: "service",
		Name:      "requests_total",
		Help:      "Requests handled, by service and outcome.",
	}, []string{"service", "outcome"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sfb",
		Subsystem: "service",
		Name:      "request_duration_seconds",
		Help:      "Wall time spent in Handle, by service.",
		Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
	}, []string{"service"})
)

// Implementation is what a concrete service plugs into the harness.
type Implementation interface {
	// Name is the logical service name used for discovery and metrics.
	Name() string
	// RequestTypes lists the request messages the service accepts.
	RequestTypes() *message.Registry
	// Handle processes one request to completion; it runs concurrently on
	// several workers and must not block indefinitely.
	Handle(req schema.Message) schema.Message
	// HandleInvalid builds the failure reply for an undecodable request.
	HandleInvalid(typeTag string, err error) schema.Message
}

// Options configures the harness.
type Options struct {
	// Endpoint is the backend address the replier pool connects to.
	Endpoint transport.Options
	// NThreads is the worker pool size. Defaults to 1.
	NThreads int
}

// Harness runs an Implementation as an elastic pool of replier loops.
// Lifecycle: Uninitialized -> Initialized -> Running -> Stopped. A stopped
// harness may be re-initialized.
type Harness struct {
	lifecycle
	ctx  *transport.Context
	log  zerolog.Logger
	impl Implementation

	opts     Options
	repliers []*transport.Replier
	group    *errgroup.Group
}

func NewHarness(ctx *transport.Context, log zerolog.Logger, impl Implementation) *Harness {
	return &Harness{
		ctx:  ctx,
		impl: impl,
		log:  log.With().Str("service", impl.Name()).Logger(),
	}
}

// Initialize prepares the replier pool. Allowed from Uninitialized,
// Initialized, and Stopped.
func (h *Harness) Initialize(opts Options) error {
	if err := h.transition(Initialized, Uninitialized, Initialized, Stopped); err != nil {
		return err
	}
	if opts.NThreads <= 0 {
		opts.NThreads = 1
	}
	opts.Endpoint.MessageTypes = h.impl.RequestTypes()

	h.opts = opts
	h.repliers = make([]*transport.Replier, opts.NThreads)
	for i := range h.repliers {
		r := transport.NewReplier(h.ctx, h.log)
		if err := r.Initialize(opts.Endpoint, &instrumented{h}); err != nil {
			h.lifecycle.mu.Lock()
			h.lifecycle.state = Uninitialized
			h.lifecycle.mu.Unlock()
			return err
		}
		h.repliers[i] = r
	}
	return nil
}

// Start launches the worker pool. Only legal from Initialized.
func (h *Harness) Start() error {
	if err := h.transition(Running, Initialized); err != nil {
		return err
	}
	h.group = &errgroup.Group{}
	for _, r := range h.repliers {
		h.group.Go(r.Run)
	}
	h.log.Info().Int("workers", len(h.repliers)).
		Str("address", h.opts.Endpoint.Address).Msg("service started")
	return nil
}

// Stop asks every worker to exit and waits for in-flight requests to
// complete. Idempotent from any state.
func (h *Harness) Stop() error {
	for _, r := range h.repliers {
		r.Stop()
	}
	var err error
	if h.group != nil {
		err = h.group.Wait()
		h.group = nil
	}
	h.lifecycle.mu.Lock()
	if h.lifecycle.state == Running || h.lifecycle.state == Initialized {
		h.lifecycle.state = Stopped
	}
	h.lifecycle.mu.Unlock()
	if err != nil {
		return fmt.Errorf("service %s: %w", h.impl.Name(), err)
	}
	return nil
}

// instrumented decorates the implementation with metrics and panic
// containment so a misbehaving Handle cannot kill a worker.
type instrumented struct{ h *Harness }

func (w *instrumented) Handle(req schema.Message) (reply schema.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.h.log.Error().Interface("panic", r).
				Str("type", req.TypeTag()).Msg("handler panicked")
			reply = w.h.impl.HandleInvalid(req.TypeTag(),
				fmt.Errorf("handler panicked: %v", r))
			requestsHandled.WithLabelValues(w.h.impl.Name(), "panic").Inc()
		}
	}()
	reply = w.h.impl.Handle(req)
	requestDuration.WithLabelValues(w.h.impl.Name()).Observe(time.Since(start).Seconds())
	requestsHandled.WithLabelValues(w.h.impl.Name(), "handled").Inc()
	return reply
}

func (w *instrumented) HandleInvalid(typeTag string, err error) schema.Message {
	requestsHandled.WithLabelValues(w.h.impl.Name(), "invalid").Inc()
	return w.h.impl.HandleInvalid(typeTag, err)
}
