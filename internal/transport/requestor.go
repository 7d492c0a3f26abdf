// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/pkg/schema"

	"github.com/SeisFab/sf-backbone/internal/message"
)

// Requestor submits typed requests through the router and blocks for the
// matching reply. Correlation uses an internal call counter carried as its
// own frame, so a reply that arrives after its deadline is recognized and
// dropped rather than delivered to the wrong call.
//
// The socket is owned by one goroutine; concurrent Request calls are
// serialized. Callers that need true concurrency open one requestor each;
// the router fair-queues across them.
type Requestor struct {
	ctx         *Context
	log         zerolog.Logger
	sock        *zmq.Socket
	poller      *zmq.Poller
	opts        Options
	mu          sync.Mutex
	callSeq     uint64
	initialized bool
}

func NewRequestor(ctx *Context, log zerolog.Logger) *Requestor {
	return &Requestor{ctx: ctx, log: log.With().Str("component", "requestor").Logger()}
}

func (r *Requestor) Initialize(opts Options) error {
	if r.initialized {
		return fmt.Errorf("requestor: %w", ErrProtocol)
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	opts = opts.withDefaults()

	sock, err := r.ctx.NewSocket(zmq.DEALER)
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		sock.Close()
		return err
	}
	if err := sock.SetSndhwm(opts.SendHighWaterMark); err != nil {
		return cleanup(err)
	}
	if err := sock.SetRcvhwm(opts.ReceiveHighWaterMark); err != nil {
		return cleanup(err)
	}
	if err := sock.SetSndtimeo(opts.SendTimeout); err != nil {
		return cleanup(err)
	}
	if err := sock.SetLinger(0); err != nil {
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
		return cleanup(fmt.Errorf("requestor at %s: %w", opts.Address, err))
	}

	poller := zmq.NewPoller()
	poller.Add(sock, zmq.POLLIN)

	r.sock = sock
	r.poller = poller
	r.opts = opts
	r.initialized = true
	return nil
}

// Request sends req and blocks for the reply using the default deadline.
func (r *Requestor) Request(req schema.Message) (schema.Message, error) {
	return r.RequestWithDeadline(req, r.opts.RequestTimeout)
}

// RequestWithDeadline sends req and blocks up to timeout for the matching
// reply. On deadline it fails with ErrTimeout; the late reply, if any, is
// dropped on a subsequent call.
func (r *Requestor) RequestWithDeadline(req schema.Message, timeout time.Duration) (schema.Message, error) {
	if !r.initialized {
		return nil, ErrNotInitialized
	}
	payload, err := message.Marshal(req)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.callSeq++
	call := strconv.FormatUint(r.callSeq, 10)

	// Frames: empty delimiter (for the REP far side), correlation, tag,
	// payload.
	if _, err := r.sock.SendMessage("", call, req.TypeTag(), payload); err != nil {
		if isEAGAIN(err) {
			return nil, fmt.Errorf("%s: %w", req.TypeTag(), ErrBackpressure)
		}
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%s: %w", req.TypeTag(), ErrTimeout)
		}
		if remaining > r.opts.PollingTimeout {
			remaining = r.opts.PollingTimeout
		}
		polled, err := r.poller.Poll(remaining)
		if err != nil {
			return nil, err
		}
		if len(polled) == 0 {
			continue
		}
		frames, err := r.sock.RecvMessageBytes(0)
		if err != nil {
			return nil, err
		}
		// Strip the delimiter the REP socket prepends.
		if len(frames) > 0 && len(frames[0]) == 0 {
			frames = frames[1:]
		}
		if len(frames) != 3 {
			r.log.Warn().Int("frames", len(frames)).Msg("dropping malformed reply")
			continue
		}
		if string(frames[0]) != call {
			// Reply to an earlier, timed-out call.
			r.log.Debug().Str("correlation", string(frames[0])).Msg("dropping stale reply")
			continue
		}
		tag := string(frames[1])
		if !r.opts.MessageTypes.Contains(tag) {
			return nil, fmt.Errorf("%w: reply type %q not allowed", ErrProtocol, tag)
		}
		return r.opts.MessageTypes.Deserialize(tag, frames[2])
	}
}

func (r *Requestor) Close() error {
	if !r.initialized {
		return nil
	}
	r.initialized = false
	return r.sock.Close()
}
