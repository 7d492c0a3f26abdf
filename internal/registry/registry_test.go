// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/service"
)

func TestRegisterAndQuery(t *testing.T) {
	d := NewDirectory(zerolog.Nop())

	resp := d.Handle(&RegistrationRequest{
		Entry: Entry{
			Name:         "packetCache",
			Address:      "tcp://cache:5560",
			MessageTypes: []string{"sfb.packetCache.dataRequest"},
		},
		Identifier: 4,
	}).(*RegistrationResponse)
	assert.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 4, resp.Identifier)

	q := d.Handle(&QueryRequest{Name: "packetCache"}).(*QueryResponse)
	require.Equal(t, service.Success, q.ReturnCode)
	require.Len(t, q.Entries, 1)
	assert.Equal(t, "tcp://cache:5560", q.Entries[0].Address)

	q = d.Handle(&QueryRequest{Name: "missing"}).(*QueryResponse)
	assert.Equal(t, service.NoData, q.ReturnCode)
	assert.Empty(t, q.Entries)
}

func TestQueryAllIsSorted(t *testing.T) {
	d := NewDirectory(zerolog.Nop())
	for _, name := range []string{"uLocator", "incrementer", "packetCache"} {
		d.Handle(&RegistrationRequest{Entry: Entry{Name: name, Address: "tcp://x:1"}})
	}
	q := d.Handle(&QueryRequest{}).(*QueryResponse)
	require.Len(t, q.Entries, 3)
	assert.Equal(t, "incrementer", q.Entries[0].Name)
	assert.Equal(t, "packetCache", q.Entries[1].Name)
	assert.Equal(t, "uLocator", q.Entries[2].Name)
}

func TestRegistrationRequiresNameAndAddress(t *testing.T) {
	d := NewDirectory(zerolog.Nop())
	resp := d.Handle(&RegistrationRequest{Entry: Entry{Name: "x"}}).(*RegistrationResponse)
	assert.Equal(t, service.InvalidMessage, resp.ReturnCode)
}

func TestSweepExpiresStaleEntries(t *testing.T) {
	d := NewDirectory(zerolog.Nop())
	current := time.Unix(1000, 0)
	d.now = func() time.Time { return current }

	d.Handle(&RegistrationRequest{Entry: Entry{Name: "old", Address: "tcp://a:1"}})
	current = current.Add(20 * time.Second)
	d.Handle(&RegistrationRequest{Entry: Entry{Name: "fresh", Address: "tcp://b:1"}})

	current = current.Add(15 * time.Second)
	expired := d.Sweep(DefaultLease)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, d.Size())

	q := d.Handle(&QueryRequest{Name: "fresh"}).(*QueryResponse)
	assert.Equal(t, service.Success, q.ReturnCode)
	q = d.Handle(&QueryRequest{Name: "old"}).(*QueryResponse)
	assert.Equal(t, service.NoData, q.ReturnCode)
}

// A heartbeat refreshes the lease.
func TestReRegistrationRefreshesLease(t *testing.T) {
	d := NewDirectory(zerolog.Nop())
	current := time.Unix(1000, 0)
	d.now = func() time.Time { return current }

	entry := Entry{Name: "svc", Address: "tcp://a:1"}
	d.Handle(&RegistrationRequest{Entry: entry})
	current = current.Add(25 * time.Second)
	d.Handle(&RegistrationRequest{Entry: entry})
	current = current.Add(10 * time.Second)

	assert.Zero(t, d.Sweep(DefaultLease))
	assert.Equal(t, 1, d.Size())
}
