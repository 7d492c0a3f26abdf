// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry implements the service directory: every service
// publishes its logical name, address, accepted message types, and
// security level; clients resolve endpoints by name. Registrations are
// leases: a service heartbeats them and the broker sweeps out entries
// that went quiet.
package registry

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ServiceName is the directory's own logical name.
const ServiceName = "directory"

// DefaultLease is how long a registration survives without a heartbeat.
const DefaultLease = 30 * time.Second

// Entry is one registered service.
type Entry struct {
	Name          string   `cbor:"Name"`
	Address       string   `cbor:"Address"`
	MessageTypes  []string `cbor:"MessageTypes"`
	SecurityLevel int      `cbor:"SecurityLevel"`
	lastSeen      time.Time
}

// RegistrationRequest announces or refreshes one service.
type RegistrationRequest struct {
	Entry      Entry  `cbor:"Entry"`
	Identifier uint64 `cbor:"Identifier"`
}

func (*RegistrationRequest) TypeTag() string { return "sfb.directory.registrationRequest" }
func (*RegistrationRequest) Version() string { return "1.0.0" }

func (r *RegistrationRequest) NewEmpty() schema.Message { return &RegistrationRequest{} }

func (r *RegistrationRequest) Clone() schema.Message {
	q := *r
	q.Entry.MessageTypes = slices.Clone(r.Entry.MessageTypes)
	return &q
}

// RegistrationResponse acknowledges it.
type RegistrationResponse struct {
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*RegistrationResponse) TypeTag() string { return "sfb.directory.registrationResponse" }
func (*RegistrationResponse) Version() string { return "1.0.0" }

func (r *RegistrationResponse) NewEmpty() schema.Message { return &RegistrationResponse{} }
func (r *RegistrationResponse) Clone() schema.Message    { q := *r; return &q }

// QueryRequest resolves by name; an empty name lists everything.
type QueryRequest struct {
	Name       string `cbor:"Name,omitempty"`
	Identifier uint64 `cbor:"Identifier"`
}

func (*QueryRequest) TypeTag() string { return "sfb.directory.queryRequest" }
func (*QueryRequest) Version() string { return "1.0.0" }

func (r *QueryRequest) NewEmpty() schema.Message { return &QueryRequest{} }
func (r *QueryRequest) Clone() schema.Message    { q := *r; return &q }

// QueryResponse carries the matching entries.
type QueryResponse struct {
	Entries    []Entry            `cbor:"Entries"`
	Identifier uint64             `cbor:"Identifier"`
	ReturnCode service.ReturnCode `cbor:"ReturnCode"`
}

func (*QueryResponse) TypeTag() string { return "sfb.directory.queryResponse" }
func (*QueryResponse) Version() string { return "1.0.0" }

func (r *QueryResponse) NewEmpty() schema.Message { return &QueryResponse{} }

func (r *QueryResponse) Clone() schema.Message {
	q := *r
	q.Entries = make([]Entry, len(r.Entries))
	for i := range r.Entries {
		q.Entries[i] = r.Entries[i]
		q.Entries[i].MessageTypes = slices.Clone(r.Entries[i].MessageTypes)
	}
	return &q
}

// Directory is the broker-side registry service.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	log     zerolog.Logger
	types   *message.Registry
	now     func() time.Time
}

func NewDirectory(log zerolog.Logger) *Directory {
	return &Directory{
		entries: make(map[string]*Entry),
		log:     log.With().Str("service", ServiceName).Logger(),
		types:   message.NewRegistry(&RegistrationRequest{}, &QueryRequest{}),
		now:     time.Now,
	}
}

func (d *Directory) Name() string { return ServiceName }

func (d *Directory) RequestTypes() *message.Registry { return d.types }

func (d *Directory) Handle(req schema.Message) schema.Message {
	switch r := req.(type) {
	case *RegistrationRequest:
		if r.Entry.Name == "" || r.Entry.Address == "" {
			return &RegistrationResponse{Identifier: r.Identifier,
				ReturnCode: service.InvalidMessage}
		}
		e := r.Entry
		e.lastSeen = d.now()
		d.mu.Lock()
		d.entries[e.Name] = &e
		d.mu.Unlock()
		return &RegistrationResponse{Identifier: r.Identifier,
			ReturnCode: service.Success}
	case *QueryRequest:
		resp := &QueryResponse{Identifier: r.Identifier, ReturnCode: service.Success}
		d.mu.RLock()
		if r.Name != "" {
			if e, ok := d.entries[r.Name]; ok {
				resp.Entries = []Entry{*e}
			}
		} else {
			for _, e := range d.entries {
				resp.Entries = append(resp.Entries, *e)
			}
		}
		d.mu.RUnlock()
		if r.Name != "" && len(resp.Entries) == 0 {
			resp.ReturnCode = service.NoData
		}
		slices.SortFunc(resp.Entries, func(a, b Entry) int {
			switch {
			case a.Name < b.Name:
				return -1
			case a.Name > b.Name:
				return 1
			}
			return 0
		})
		return resp
	}
	return &RegistrationResponse{ReturnCode: service.InvalidMessage}
}

func (d *Directory) HandleInvalid(string, error) schema.Message {
	return &RegistrationResponse{ReturnCode: service.InvalidMessage}
}

// Sweep drops entries whose lease expired and returns how many went.
func (d *Directory) Sweep(lease time.Duration) int {
	cutoff := d.now().Add(-lease)
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for name, e := range d.entries {
		if e.lastSeen.Before(cutoff) {
			delete(d.entries, name)
			n++
		}
	}
	if n > 0 {
		d.log.Info().Int("expired", n).Msg("swept stale registrations")
	}
	return n
}

// Size reports the live entry count.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
