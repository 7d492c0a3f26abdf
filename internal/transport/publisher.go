// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// isEAGAIN reports whether a send or receive failed only because the
// operation would have blocked past its timeout.
func isEAGAIN(err error) bool {
	return zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN)
}

// Publisher posts typed messages to a broadcast address. Messages travel as
// two frames: the type tag and the CBOR payload. Delivery is best-effort
// within a connected session; when the high-water mark is hit the send
// blocks up to SendTimeout and then fails with ErrBackpressure.
type Publisher struct {
	ctx         *Context
	log         zerolog.Logger
	sock        *zmq.Socket
	opts        Options
	initialized bool
}

func NewPublisher(ctx *Context, log zerolog.Logger) *Publisher {
	return &Publisher{ctx: ctx, log: log.With().Str("component", "publisher").Logger()}
}

// Initialize opens the socket and connects (or binds) it to the address.
// An XPUB socket in no-drop mode is used so that hitting the high-water
// mark surfaces as backpressure instead of silent message loss.
func (p *Publisher) Initialize(opts Options) error {
	if p.initialized {
		return fmt.Errorf("publisher: %w", ErrProtocol)
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	opts = opts.withDefaults()

	sock, err := p.ctx.NewSocket(zmq.XPUB)
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		sock.Close()
		return err
	}
	if err := sock.SetXpubNodrop(true); err != nil {
		return cleanup(err)
	}
	if err := sock.SetSndhwm(opts.SendHighWaterMark); err != nil {
		return cleanup(err)
	}
	if err := sock.SetSndtimeo(opts.SendTimeout); err != nil {
		return cleanup(err)
	}
	if err := sock.SetLinger(200 * time.Millisecond); err != nil {
		return cleanup(err)
	}
	if err := opts.ZAP.Apply(sock); err != nil {
		return cleanup(err)
	}
	if opts.Bind {
		err = sock.Bind(opts.Address)
	} else {
		err = sock.Connect(opts.Address)
	}
	if err != nil {
		return cleanup(fmt.Errorf("publisher at %s: %w", opts.Address, err))
	}

	p.sock = sock
	p.opts = opts
	p.initialized = true
	p.log.Debug().Str("address", opts.Address).
		Str("security", opts.ZAP.Level.String()).Msg("publisher up")
	return nil
}

// Send serializes and posts one message. The socket is owned by the calling
// goroutine; Send must not be called concurrently.
func (p *Publisher) Send(m schema.Message) error {
	if !p.initialized {
		return ErrNotInitialized
	}
	payload, err := message.Marshal(m)
	if err != nil {
		return err
	}
	if _, err = p.sock.SendMessage(m.TypeTag(), payload); err != nil {
		if isEAGAIN(err) {
			return fmt.Errorf("%s: %w", m.TypeTag(), ErrBackpressure)
		}
		return err
	}
	return nil
}

// Close releases the socket. Safe to call twice.
func (p *Publisher) Close() error {
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return p.sock.Close()
}
