// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport wraps the brokered messaging fabric the pipeline runs
// on. Three patterns are provided: broadcast (publisher/subscriber over an
// XSUB/XPUB proxy), request/reply (dealer sockets fair-queued through a
// ROUTER/DEALER proxy), and the proxies themselves. Every endpoint carries
// an authorization blob (ZAPOptions) and explicit high-water marks.
//
// Sockets are owned by exactly one goroutine. The context is process-wide,
// thread-safe, and created once.
package transport

import (
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// Context is the shared messaging context. Services create one and hand
// borrowed references to every endpoint they open.
type Context struct {
	ctx      *zmq.Context
	mu       sync.Mutex
	shutdown bool
}

var (
	globalOnce sync.Once
	globalCtx  *Context
	globalErr  error
)

// GlobalContext returns the process-wide context, creating it on first use.
func GlobalContext() (*Context, error) {
	globalOnce.Do(func() {
		globalCtx, globalErr = NewContext(1)
	})
	return globalCtx, globalErr
}

// NewContext creates an isolated context with the given I/O thread count.
// Tests use isolated contexts so inproc namespaces do not collide.
func NewContext(ioThreads int) (*Context, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, err
	}
	if ioThreads > 0 {
		if err := ctx.SetIoThreads(ioThreads); err != nil {
			ctx.Term()
			return nil, err
		}
	}
	return &Context{ctx: ctx}, nil
}

// NewSocket creates a socket of the given type on this context. The caller
// owns the socket and must close it from the owning goroutine.
func (c *Context) NewSocket(t zmq.Type) (*zmq.Socket, error) {
	return c.ctx.NewSocket(t)
}

// Close terminates the context. All sockets must be closed first; a second
// Close is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return nil
	}
	c.shutdown = true
	return c.ctx.Term()
}
