// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package incrementer

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/transport"
)

// ErrUnavailable mirrors the service-side refusal when the identifier
// store is down.
var ErrUnavailable = errors.New("identifier service unavailable")

// Client requests identifier blocks from the service.
type Client struct {
	req *transport.Requestor
}

func NewClient(ctx *transport.Context, log zerolog.Logger, opts transport.Options) (*Client, error) {
	opts.MessageTypes = message.NewRegistry(&Response{}, &ItemsResponse{})
	req := transport.NewRequestor(ctx, log)
	if err := req.Initialize(opts); err != nil {
		return nil, err
	}
	return &Client{req: req}, nil
}

// Next returns a contiguous block of count identifiers for item.
func (c *Client) Next(item string, count int) ([]uint64, error) {
	reply, err := c.req.Request(&Request{Item: item, Count: count})
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(*Response)
	if !ok {
		return nil, transport.ErrProtocol
	}
	switch resp.ReturnCode {
	case service.Success:
		return resp.Values, nil
	case service.Unavailable:
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("incrementer returned %s", resp.ReturnCode)
}

// Items lists the known counter names.
func (c *Client) Items() ([]string, error) {
	reply, err := c.req.Request(&ItemsRequest{})
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(*ItemsResponse)
	if !ok {
		return nil, transport.ErrProtocol
	}
	if resp.ReturnCode != service.Success {
		return nil, fmt.Errorf("incrementer returned %s", resp.ReturnCode)
	}
	return resp.Items, nil
}

func (c *Client) Close() error { return c.req.Close() }
