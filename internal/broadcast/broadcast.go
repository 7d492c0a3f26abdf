// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package broadcast provides the typed publish/subscribe adapters for the
// four pipeline broadcasts: raw data packets, probability packets, picks,
// and origins. Each adapter pins the transport allow-list to exactly one
// message type, so a subscriber can never hand back a foreign message.
package broadcast

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/transport"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Publisher posts one message type to a broadcast address.
type Publisher[T schema.Message] struct {
	pub *transport.Publisher
}

func newPublisher[T schema.Message](ctx *transport.Context, log zerolog.Logger) *Publisher[T] {
	return &Publisher[T]{pub: transport.NewPublisher(ctx, log)}
}

func (p *Publisher[T]) Initialize(opts transport.Options) error {
	var prototype T
	opts.MessageTypes = message.NewRegistry(prototype.NewEmpty())
	return p.pub.Initialize(opts)
}

func (p *Publisher[T]) Send(m T) error { return p.pub.Send(m) }

func (p *Publisher[T]) Close() error { return p.pub.Close() }

// Subscriber receives one message type from a broadcast address.
type Subscriber[T schema.Message] struct {
	sub *transport.Subscriber
}

func newSubscriber[T schema.Message](ctx *transport.Context, log zerolog.Logger) *Subscriber[T] {
	return &Subscriber[T]{sub: transport.NewSubscriber(ctx, log)}
}

func (s *Subscriber[T]) Initialize(opts transport.Options) error {
	var prototype T
	opts.MessageTypes = message.NewRegistry(prototype.NewEmpty())
	return s.sub.Initialize(opts)
}

// Receive blocks up to the polling timeout; the zero value with a nil
// error means nothing arrived.
func (s *Subscriber[T]) Receive() (T, error) {
	var zero T
	m, err := s.sub.Receive()
	if err != nil || m == nil {
		return zero, err
	}
	typed, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected %s", transport.ErrProtocol, m.TypeTag())
	}
	return typed, nil
}

func (s *Subscriber[T]) Close() error { return s.sub.Close() }

// The concrete adapter set.
type (
	DataPacketPublisher         = Publisher[*schema.DataPacket]
	DataPacketSubscriber        = Subscriber[*schema.DataPacket]
	ProbabilityPacketPublisher  = Publisher[*schema.ProbabilityPacket]
	ProbabilityPacketSubscriber = Subscriber[*schema.ProbabilityPacket]
	PickPublisher               = Publisher[*schema.Pick]
	PickSubscriber              = Subscriber[*schema.Pick]
	OriginPublisher             = Publisher[*schema.Origin]
	OriginSubscriber            = Subscriber[*schema.Origin]
)

func NewDataPacketPublisher(ctx *transport.Context, log zerolog.Logger) *DataPacketPublisher {
	return newPublisher[*schema.DataPacket](ctx, log)
}

func NewDataPacketSubscriber(ctx *transport.Context, log zerolog.Logger) *DataPacketSubscriber {
	return newSubscriber[*schema.DataPacket](ctx, log)
}

func NewProbabilityPacketPublisher(ctx *transport.Context, log zerolog.Logger) *ProbabilityPacketPublisher {
	return newPublisher[*schema.ProbabilityPacket](ctx, log)
}

func NewProbabilityPacketSubscriber(ctx *transport.Context, log zerolog.Logger) *ProbabilityPacketSubscriber {
	return newSubscriber[*schema.ProbabilityPacket](ctx, log)
}

func NewPickPublisher(ctx *transport.Context, log zerolog.Logger) *PickPublisher {
	return newPublisher[*schema.Pick](ctx, log)
}

func NewPickSubscriber(ctx *transport.Context, log zerolog.Logger) *PickSubscriber {
	return newSubscriber[*schema.Pick](ctx, log)
}

func NewOriginPublisher(ctx *transport.Context, log zerolog.Logger) *OriginPublisher {
	return newPublisher[*schema.Origin](ctx, log)
}

func NewOriginSubscriber(ctx *transport.Context, log zerolog.Logger) *OriginSubscriber {
	return newSubscriber[*schema.Origin](ctx, log)
}
