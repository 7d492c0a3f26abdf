// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"sync/atomic"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Handler turns requests into replies. Both methods must always return a
// message (failures are expressed as reply return codes, not as missing
// replies) and may be invoked from many replier loops at once.
type Handler interface {
	// Handle processes one well-formed request.
	Handle(req schema.Message) schema.Message
	// HandleInvalid builds the failure reply for a request that did not
	// deserialize or carried an off-list type tag.
	HandleInvalid(typeTag string, err error) schema.Message
}

// Replier is one worker loop on the backend side of the router. Several
// repliers bind the same logical address through the proxy and the router
// fair-queues requests across them.
//
// The loop runs on the goroutine that calls Run; the socket never leaves
// it. Stop flips an atomic flag observed within one polling interval, and
// the in-flight request completes before the loop exits.
type Replier struct {
	ctx     *Context
	log     zerolog.Logger
	opts    Options
	handler Handler
	stopped atomic.Bool

	initialized bool
}

func NewReplier(ctx *Context, log zerolog.Logger) *Replier {
	return &Replier{ctx: ctx, log: log.With().Str("component", "replier").Logger()}
}

func (r *Replier) Initialize(opts Options, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("replier: nil handler")
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	r.opts = opts.withDefaults()
	r.handler = handler
	r.initialized = true
	return nil
}

// Stop asks the loop to exit. Idempotent; safe from any goroutine.
func (r *Replier) Stop() { r.stopped.Store(true) }

// Run executes the poll/dispatch/reply loop until Stop is called. The
// socket is created and closed here so that it lives entirely on the
// calling goroutine.
func (r *Replier) Run() error {
	if !r.initialized {
		return ErrNotInitialized
	}
	sock, err := r.ctx.NewSocket(zmq.REP)
	if err != nil {
		return err
	}
	defer sock.Close()
	if err := sock.SetSndhwm(r.opts.SendHighWaterMark); err != nil {
		return err
	}
	if err := sock.SetRcvhwm(r.opts.ReceiveHighWaterMark); err != nil {
		return err
	}
	if err := sock.SetLinger(0); err != nil {
		return err
	}
	if err := r.opts.ZAP.Apply(sock); err != nil {
		return err
	}
	if r.opts.Bind {
		err = sock.Bind(r.opts.Address)
	} else {
		err = sock.Connect(r.opts.Address)
	}
	if err != nil {
		return fmt.Errorf("replier at %s: %w", r.opts.Address, err)
	}

	poller := zmq.NewPoller()
	poller.Add(sock, zmq.POLLIN)

	for !r.stopped.Load() {
		polled, err := poller.Poll(r.opts.PollingTimeout)
		if err != nil {
			return err
		}
		if len(polled) == 0 {
			continue
		}
		frames, err := sock.RecvMessageBytes(0)
		if err != nil {
			r.log.Warn().Err(err).Msg("receive failed")
			continue
		}
		// Frames after the REP envelope strip: correlation, tag, payload.
		if len(frames) != 3 {
			r.log.Warn().Int("frames", len(frames)).Msg("dropping malformed request")
			// The REP state machine demands a reply before the next recv.
			sock.SendMessage("", "", "")
			continue
		}
		call, tag, payload := frames[0], string(frames[1]), frames[2]

		reply := r.dispatch(tag, payload)
		replyPayload, err := message.Marshal(reply)
		if err != nil {
			r.log.Error().Err(err).Str("type", reply.TypeTag()).Msg("reply encoding failed")
			sock.SendMessage(call, "", "")
			continue
		}
		if _, err := sock.SendMessage(call, reply.TypeTag(), replyPayload); err != nil {
			r.log.Warn().Err(err).Msg("reply send failed")
		}
	}
	return nil
}

func (r *Replier) dispatch(tag string, payload []byte) schema.Message {
	req, err := r.opts.MessageTypes.Deserialize(tag, payload)
	if err != nil {
		r.log.Warn().Err(err).Str("type", tag).Msg("request rejected")
		return r.handler.HandleInvalid(tag, err)
	}
	return r.handler.Handle(req)
}
