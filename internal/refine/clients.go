// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package refine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/inference"
	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/packetcache"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/internal/services/firstmotion"
	"github.com/SeisFab/sf-backbone/internal/services/picker"
	"github.com/SeisFab/sf-backbone/internal/transport"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// CacheSource fetches snippets from the packet cache service. A window
// that the cache cannot yet serve in full maps to ErrDataNotReady so the
// pick lands back on the retry schedule.
type CacheSource struct {
	req *transport.Requestor
}

func NewCacheSource(ctx *transport.Context, log zerolog.Logger, opts transport.Options) (*CacheSource, error) {
	opts.MessageTypes = message.NewRegistry(&packetcache.UniformResponse{})
	req := transport.NewRequestor(ctx, log)
	if err := req.Initialize(opts); err != nil {
		return nil, err
	}
	return &CacheSource{req: req}, nil
}

// Snippet extracts samples centered on the onset at the given rate.
func (s *CacheSource) Snippet(ch schema.ChannelID, center int64, samples int, rate float64) ([]float64, error) {
	half := int64(math.Round(float64(samples/2) / rate * 1e6))
	t0 := center - half
	t1 := t0 + int64(math.Round(float64(samples-1)/rate*1e6))

	reply, err := s.req.Request(&packetcache.UniformRequest{
		ChannelID: ch, StartTime: t0, EndTime: t1, SamplingRate: rate,
	})
	if err != nil {
		return nil, err
	}
	resp, ok := reply.(*packetcache.UniformResponse)
	if !ok {
		return nil, transport.ErrProtocol
	}
	switch resp.ReturnCode {
	case service.Success:
	case service.NoSensor, service.NoData:
		return nil, ErrDataNotReady
	default:
		return nil, fmt.Errorf("cache returned %s", resp.ReturnCode)
	}
	// A gap in the window means the telemetry has not fully arrived.
	if len(resp.Gaps) > 0 || len(resp.Samples) < samples {
		return nil, ErrDataNotReady
	}
	return resp.Samples[:samples], nil
}

func (s *CacheSource) Close() error { return s.req.Close() }

// PickerClient refines onsets through a one-component picker service.
type PickerClient struct {
	req    *transport.Requestor
	length int
}

func NewPickerClient(ctx *transport.Context, log zerolog.Logger, opts transport.Options, snippetLength int) (*PickerClient, error) {
	opts.MessageTypes = message.NewRegistry(&picker.Response{})
	req := transport.NewRequestor(ctx, log)
	if err := req.Initialize(opts); err != nil {
		return nil, err
	}
	return &PickerClient{req: req, length: snippetLength}, nil
}

func (c *PickerClient) SnippetLength() int { return c.length }

func (c *PickerClient) Refine(p *schema.Pick, snippet []float64) (float64, error) {
	reply, err := c.req.Request(&picker.ProcessingRequest{
		VerticalSignal: snippet,
		SamplingRate:   100,
		Identifier:     p.Identifier,
	})
	if err != nil {
		return 0, err
	}
	resp, ok := reply.(*picker.Response)
	if !ok {
		return 0, transport.ErrProtocol
	}
	if resp.ReturnCode != service.Success {
		return 0, fmt.Errorf("picker returned %s", resp.ReturnCode)
	}
	return resp.Correction, nil
}

func (c *PickerClient) Close() error { return c.req.Close() }

// FirstMotionClient classifies polarity through the classifier service.
type FirstMotionClient struct {
	req *transport.Requestor
}

func NewFirstMotionClient(ctx *transport.Context, log zerolog.Logger, opts transport.Options) (*FirstMotionClient, error) {
	opts.MessageTypes = message.NewRegistry(&firstmotion.Response{})
	req := transport.NewRequestor(ctx, log)
	if err := req.Initialize(opts); err != nil {
		return nil, err
	}
	return &FirstMotionClient{req: req}, nil
}

func (c *FirstMotionClient) SnippetLength() int { return inference.FirstMotionLength }

func (c *FirstMotionClient) Classify(p *schema.Pick, snippet []float64) (schema.FirstMotion, error) {
	reply, err := c.req.Request(&firstmotion.ProcessingRequest{
		VerticalSignal: snippet,
		SamplingRate:   100,
		Identifier:     p.Identifier,
	})
	if err != nil {
		return schema.FirstMotionUnknown, err
	}
	resp, ok := reply.(*firstmotion.Response)
	if !ok {
		return schema.FirstMotionUnknown, transport.ErrProtocol
	}
	if resp.ReturnCode != service.Success {
		return schema.FirstMotionUnknown, fmt.Errorf("classifier returned %s", resp.ReturnCode)
	}
	return resp.FirstMotion, nil
}

func (c *FirstMotionClient) Close() error { return c.req.Close() }
