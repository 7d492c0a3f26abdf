// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
)

// ProxyKind selects the socket pair a proxy runs.
type ProxyKind int

const (
	// BroadcastProxy forwards publishers (XSUB frontend) to subscribers
	// (XPUB backend).
	BroadcastProxy ProxyKind = iota
	// ServiceProxy fair-queues requestors (ROUTER frontend) across the
	// connected replier pool (DEALER backend).
	ServiceProxy
)

// ProxyOptions configures one proxy hop inside the broker.
type ProxyOptions struct {
	Kind            ProxyKind
	FrontendAddress string
	BackendAddress  string
	FrontendHWM     int
	BackendHWM      int
	ZAP             ZAPOptions
}

// Proxy is one steerable broker hop. Start runs the proxy on its own
// goroutine; Stop terminates it through the control socket.
type Proxy struct {
	ctx  *Context
	log  zerolog.Logger
	opts ProxyOptions

	controlAddr string
	mu          sync.Mutex
	running     bool
	done        chan error
}

var proxySeq atomic.Int64

func NewProxy(ctx *Context, log zerolog.Logger, opts ProxyOptions) *Proxy {
	return &Proxy{ctx: ctx, log: log.With().Str("component", "proxy").Logger(), opts: opts}
}

func (p *Proxy) socketTypes() (zmq.Type, zmq.Type) {
	if p.opts.Kind == ServiceProxy {
		return zmq.ROUTER, zmq.DEALER
	}
	return zmq.XSUB, zmq.XPUB
}

// Start binds both sides and runs the steerable proxy until Stop.
func (p *Proxy) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("proxy: %w", ErrProtocol)
	}
	if p.opts.FrontendAddress == "" || p.opts.BackendAddress == "" {
		return fmt.Errorf("proxy: both addresses are required")
	}

	p.controlAddr = fmt.Sprintf("inproc://sfb-proxy-control-%d", proxySeq.Add(1))
	p.done = make(chan error, 1)
	p.running = true

	ready := make(chan error, 1)
	go p.run(ready)
	if err := <-ready; err != nil {
		p.running = false
		return err
	}
	p.log.Info().Str("frontend", p.opts.FrontendAddress).
		Str("backend", p.opts.BackendAddress).Msg("proxy running")
	return nil
}

func (p *Proxy) run(ready chan<- error) {
	frontType, backType := p.socketTypes()

	fail := func(err error) {
		ready <- err
		p.done <- err
	}

	front, err := p.ctx.NewSocket(frontType)
	if err != nil {
		fail(err)
		return
	}
	defer front.Close()
	back, err := p.ctx.NewSocket(backType)
	if err != nil {
		fail(err)
		return
	}
	defer back.Close()
	control, err := p.ctx.NewSocket(zmq.PAIR)
	if err != nil {
		fail(err)
		return
	}
	defer control.Close()

	hwm := func(sock *zmq.Socket, n int) error {
		if n <= 0 {
			return nil
		}
		if err := sock.SetSndhwm(n); err != nil {
			return err
		}
		return sock.SetRcvhwm(n)
	}
	if err := hwm(front, p.opts.FrontendHWM); err != nil {
		fail(err)
		return
	}
	if err := hwm(back, p.opts.BackendHWM); err != nil {
		fail(err)
		return
	}
	if err := p.opts.ZAP.Apply(front); err != nil {
		fail(err)
		return
	}
	if err := front.Bind(p.opts.FrontendAddress); err != nil {
		fail(fmt.Errorf("proxy frontend %s: %w", p.opts.FrontendAddress, err))
		return
	}
	if err := back.Bind(p.opts.BackendAddress); err != nil {
		fail(fmt.Errorf("proxy backend %s: %w", p.opts.BackendAddress, err))
		return
	}
	if err := control.Bind(p.controlAddr); err != nil {
		fail(err)
		return
	}

	ready <- nil
	err = zmq.ProxySteerable(front, back, nil, control)
	p.done <- err
}

// Stop terminates the proxy and waits for the loop to exit. Idempotent.
func (p *Proxy) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false

	control, err := p.ctx.NewSocket(zmq.PAIR)
	if err != nil {
		return err
	}
	defer control.Close()
	if err := control.Connect(p.controlAddr); err != nil {
		return err
	}
	if _, err := control.Send("TERMINATE", 0); err != nil {
		return err
	}
	<-p.done
	return nil
}
