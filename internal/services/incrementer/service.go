// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package incrementer implements the standalone identifier service. It
// hands out monotone blocks of 64-bit identifiers per name, backed by the
// durable counter store, and refuses all requests when the store is down
// rather than risk reissuing an identifier.
package incrementer

import (
	"errors"
	"slices"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/repository"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the logical discovery name.
const ServiceName = "incrementer"

// Request asks for a contiguous block of identifiers for one name.
// Count zero means one.
type Request struct {
	Item       string `cbor:"Item"`
	Count      int    `cbor:"Count,omitempty"`
	Identifier uint64 `cbor:"Identifier"`
}

func (*Request) TypeTag() string { return "sfb.incrementer.request" }
func (*Request) Version() string { return "1.0.0" }

func (r *Request) NewEmpty() schema.Message { return &Request{} }
func (r *Request) Clone() schema.Message    { q := *r; return &q }

// Response carries the issued block in ascending order.
type Response struct {
	Values     []uint64           `cbor:"Values"`
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*Response) TypeTag() string { return "sfb.incrementer.response" }
func (*Response) Version() string { return "1.0.0" }

func (r *Response) NewEmpty() schema.Message { return &Response{} }

func (r *Response) Clone() schema.Message {
	q := *r
	q.Values = slices.Clone(r.Values)
	return &q
}

// ItemsRequest asks for the known counter names.
type ItemsRequest struct {
	Identifier uint64 `cbor:"Identifier"`
}

func (*ItemsRequest) TypeTag() string { return "sfb.incrementer.itemsRequest" }
func (*ItemsRequest) Version() string { return "1.0.0" }

func (r *ItemsRequest) NewEmpty() schema.Message { return &ItemsRequest{} }
func (r *ItemsRequest) Clone() schema.Message    { q := *r; return &q }

// ItemsResponse lists them.
type ItemsResponse struct {
	Items      []string           `cbor:"Items"`
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*ItemsResponse) TypeTag() string { return "sfb.incrementer.itemsResponse" }
func (*ItemsResponse) Version() string { return "1.0.0" }

func (r *ItemsResponse) NewEmpty() schema.Message { return &ItemsResponse{} }

func (r *ItemsResponse) Clone() schema.Message {
	q := *r
	q.Items = slices.Clone(r.Items)
	return &q
}

// Service adapts the counter store to the worker harness.
type Service struct {
	store *repository.CounterStore
	log   zerolog.Logger
	types *message.Registry
}

func NewService(store *repository.CounterStore, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("service", ServiceName).Logger(),
		types: message.NewRegistry(&Request{}, &ItemsRequest{}),
	}
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) RequestTypes() *message.Registry { return s.types }

// Healthy reports whether the backing store answers.
func (s *Service) Healthy() bool { return s.store.Healthy() }

func (s *Service) Handle(req schema.Message) schema.Message {
	switch r := req.(type) {
	case *Request:
		return s.next(r)
	case *ItemsRequest:
		resp := &ItemsResponse{Identifier: r.Identifier}
		items, err := s.store.Names()
		if err != nil {
			resp.ReturnCode = service.Unavailable
			return resp
		}
		resp.Items = items
		resp.ReturnCode = service.Success
		return resp
	}
	return &Response{ReturnCode: service.InvalidMessage}
}

func (s *Service) HandleInvalid(string, error) schema.Message {
	return &Response{ReturnCode: service.InvalidMessage}
}

func (s *Service) next(r *Request) schema.Message {
	resp := &Response{Identifier: r.Identifier}
	count := r.Count
	if count == 0 {
		count = 1
	}
	if r.Item == "" || count < 0 {
		resp.ReturnCode = service.InvalidMessage
		return resp
	}
	values, err := s.store.Next(r.Item, count)
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			s.log.Error().Err(err).Msg("refusing request, store down")
			resp.ReturnCode = service.Unavailable
		} else {
			resp.ReturnCode = service.InvalidMessage
		}
		return resp
	}
	resp.Values = values
	resp.ReturnCode = service.Success
	return resp
}
