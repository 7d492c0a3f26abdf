// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Subscriber receives typed messages from a broadcast address. The allowed
// message types are declared at initialization; anything else on the wire
// is reported as ErrProtocol and skipped by the caller. Messages already
// queued are never discarded: once a subscriber that falls behind reaches
// its receive high-water mark, newer messages are held back or dropped on
// the sending side (a no-drop publisher reports ErrBackpressure).
type Subscriber struct {
	ctx         *Context
	log         zerolog.Logger
	sock        *zmq.Socket
	poller      *zmq.Poller
	opts        Options
	initialized bool
}

func NewSubscriber(ctx *Context, log zerolog.Logger) *Subscriber {
	return &Subscriber{ctx: ctx, log: log.With().Str("component", "subscriber").Logger()}
}

func (s *Subscriber) Initialize(opts Options) error {
	if s.initialized {
		return fmt.Errorf("subscriber: %w", ErrProtocol)
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.ReceiveHighWaterMark <= 0 {
		opts.ReceiveHighWaterMark = DefaultSubscriberReceiveHWM
	}
	opts = opts.withDefaults()

	sock, err := s.ctx.NewSocket(zmq.SUB)
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		sock.Close()
		return err
	}
	if err := sock.SetRcvhwm(opts.ReceiveHighWaterMark); err != nil {
		return cleanup(err)
	}
	if err := sock.SetLinger(0); err != nil {
		return cleanup(err)
	}
	if err := opts.ZAP.Apply(sock); err != nil {
		return cleanup(err)
	}
	// Subscribe to the allowed type tags; the tag is the first frame so
	// the fabric can filter before the payload is touched.
	for _, tag := range opts.MessageTypes.Tags() {
		if err := sock.SetSubscribe(tag); err != nil {
			return cleanup(err)
		}
	}
	if opts.Bind {
		err = sock.Bind(opts.Address)
	} else {
		err = sock.Connect(opts.Address)
	}
	if err != nil {
		return cleanup(fmt.Errorf("subscriber at %s: %w", opts.Address, err))
	}

	poller := zmq.NewPoller()
	poller.Add(sock, zmq.POLLIN)

	s.sock = sock
	s.poller = poller
	s.opts = opts
	s.initialized = true
	s.log.Debug().Str("address", opts.Address).
		Strs("types", opts.MessageTypes.Tags()).Msg("subscriber up")
	return nil
}

// Receive blocks up to the polling timeout. It returns (nil, nil) when no
// message arrived in time. Off-list types and undecodable payloads are
// returned as errors; the session stays usable.
func (s *Subscriber) Receive() (schema.Message, error) {
	return s.ReceiveTimeout(s.opts.PollingTimeout)
}

// ReceiveTimeout is Receive with an explicit bound.
func (s *Subscriber) ReceiveTimeout(timeout time.Duration) (schema.Message, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	polled, err := s.poller.Poll(timeout)
	if err != nil {
		return nil, err
	}
	if len(polled) == 0 {
		return nil, nil
	}
	frames, err := s.sock.RecvMessageBytes(0)
	if err != nil {
		return nil, err
	}
	if len(frames) != 2 {
		return nil, fmt.Errorf("%w: got %d frames, want 2", ErrProtocol, len(frames))
	}
	tag := string(frames[0])
	if !s.opts.MessageTypes.Contains(tag) {
		return nil, fmt.Errorf("%w: message type %q not allowed", ErrProtocol, tag)
	}
	return s.opts.MessageTypes.Deserialize(tag, frames[1])
}

func (s *Subscriber) Close() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	return s.sock.Close()
}
