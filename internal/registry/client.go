// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

var ErrNotRegistered = errors.New("service not found in directory")

// Client talks to the directory: registration with heartbeats, and name
// resolution. It owns one requestor; calls are serialized.
type Client struct {
	req  *transport.Requestor
	log  zerolog.Logger
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewClient connects a directory client to the given address.
func NewClient(ctx *transport.Context, log zerolog.Logger, opts transport.Options) (*Client, error) {
	opts.MessageTypes = message.NewRegistry(
		&RegistrationResponse{}, &QueryResponse{})
	req := transport.NewRequestor(ctx, log)
	if err := req.Initialize(opts); err != nil {
		return nil, err
	}
	return &Client{
		req:  req,
		log:  log.With().Str("component", "directoryClient").Logger(),
		stop: make(chan struct{}),
	}, nil
}

// Register announces the entry once.
func (c *Client) Register(e Entry) error {
	reply, err := c.req.Request(&RegistrationRequest{Entry: e})
	if err != nil {
		return err
	}
	resp, ok := reply.(*RegistrationResponse)
	if !ok {
		return transport.ErrProtocol
	}
	if resp.ReturnCode != service.Success {
		return fmt.Errorf("registration rejected: %s", resp.ReturnCode)
	}
	return nil
}

// StartHeartbeat re-registers the entry on the given interval until
// Close. Failures are logged and retried on the next tick.
func (c *Client) StartHeartbeat(e Entry, interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if err := c.Register(e); err != nil {
					c.log.Warn().Err(err).Str("name", e.Name).
						Msg("heartbeat failed")
				}
			}
		}
	}()
}

// Resolve looks one service up by logical name.
func (c *Client) Resolve(name string) (Entry, error) {
	reply, err := c.req.Request(&QueryRequest{Name: name})
	if err != nil {
		return Entry{}, err
	}
	resp, ok := reply.(*QueryResponse)
	if !ok {
		return Entry{}, transport.ErrProtocol
	}
	if resp.ReturnCode != service.Success || len(resp.Entries) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return resp.Entries[0], nil
}

// List returns every live registration.
func (c *Client) List() ([]Entry, error) {
	reply, err := c.req.Request(&QueryRequest{})
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(*QueryResponse)
	if !ok {
		return nil, transport.ErrProtocol
	}
	return resp.Entries, nil
}

// Close stops the heartbeat loop and releases the requestor.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
	return c.req.Close()
}
