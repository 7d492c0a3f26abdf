// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"time"

	"github.com/SeisFab/sf-backbone/internal/message"
)

// High-water mark and polling defaults shared by all endpoints.
const (
	DefaultSubscriberReceiveHWM = 8192
	DefaultSendHWM              = 8192
	DefaultReceiveHWM           = 4096
	DefaultPollingTimeout       = 10 * time.Millisecond
	DefaultSendTimeout          = time.Second
	DefaultRequestTimeout       = 5 * time.Second
)

// Options parameterizes a single endpoint.
type Options struct {
	// Address is a tcp://host:port or inproc://name URI.
	Address string
	// Bind makes the endpoint bind instead of connect. Endpoints normally
	// connect to a broker-side proxy; tests and the broker itself bind.
	Bind bool

	SendHighWaterMark    int
	ReceiveHighWaterMark int

	// PollingTimeout bounds every blocking poll. Stop requests are
	// observed within one polling interval.
	PollingTimeout time.Duration
	// SendTimeout bounds a blocking send before ErrBackpressure.
	SendTimeout time.Duration
	// RequestTimeout is the default per-call deadline on requestors.
	RequestTimeout time.Duration

	ZAP ZAPOptions

	// MessageTypes is the allow-list of types this endpoint accepts.
	MessageTypes *message.Registry
}

func (o *Options) Validate() error {
	if o.Address == "" {
		return errors.New("endpoint address not set")
	}
	return nil
}

// withDefaults fills the zero fields with the documented defaults.
func (o Options) withDefaults() Options {
	if o.SendHighWaterMark <= 0 {
		o.SendHighWaterMark = DefaultSendHWM
	}
	if o.ReceiveHighWaterMark <= 0 {
		o.ReceiveHighWaterMark = DefaultReceiveHWM
	}
	if o.PollingTimeout <= 0 {
		o.PollingTimeout = DefaultPollingTimeout
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MessageTypes == nil {
		o.MessageTypes = message.NewRegistry()
	}
	return o
}
