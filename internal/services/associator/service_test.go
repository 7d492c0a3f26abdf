// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package associator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/service"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

func pick(id uint64, station string, phase schema.Phase, t int64) schema.Pick {
	posterior := 0.9
	return schema.Pick{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: station, Channel: "HHZ", LocationCode: "01",
		},
		Time: t, PhaseHint: phase, Identifier: id,
		StandardError: 0.05, Posterior: &posterior,
	}
}

// Eight picks over four stations, P and S each, one event.
func eventPicks(t0 int64) []schema.Pick {
	return []schema.Pick{
		pick(1, "FORK", schema.PhaseP, t0+1000000),
		pick(2, "FORK", schema.PhaseS, t0+2200000),
		pick(3, "CVRU", schema.PhaseP, t0+1500000),
		pick(4, "CVRU", schema.PhaseS, t0+3100000),
		pick(5, "MSU", schema.PhaseP, t0+2100000),
		pick(6, "MSU", schema.PhaseS, t0+4200000),
		pick(7, "SRU", schema.PhaseP, t0+2600000),
		pick(8, "SRU", schema.PhaseS, t0+5000000),
	}
}

func TestAssociateOneEvent(t *testing.T) {
	const t0 = int64(1628803600000000)
	origins, orphans := Associate(eventPicks(t0), Options{})
	require.Len(t, origins, 1)
	assert.Empty(t, orphans)

	o := origins[0]
	require.Len(t, o.Arrivals, 8)
	require.NoError(t, schema.ValidateArrivalSet(o.Arrivals))
	assert.EqualValues(t, t0+1000000, o.Time)

	ids := map[uint64]bool{}
	for _, a := range o.Arrivals {
		ids[a.PickIdentifier] = true
	}
	assert.Len(t, ids, 8, "every pick referenced exactly once")
}

func TestAssociateIsPure(t *testing.T) {
	const t0 = int64(1628803600000000)
	a1, _ := Associate(eventPicks(t0), Options{})
	a2, _ := Associate(eventPicks(t0), Options{})
	assert.Equal(t, a1, a2)
}

func TestAssociateDropsSparseClusters(t *testing.T) {
	picks := []schema.Pick{
		pick(1, "FORK", schema.PhaseP, 1000000),
		pick(2, "CVRU", schema.PhaseP, 1500000),
	}
	origins, orphans := Associate(picks, Options{})
	assert.Empty(t, origins)
	assert.NotEmpty(t, orphans)
}

func TestAssociateSeparatesDistantEvents(t *testing.T) {
	const t0 = int64(1628803600000000)
	const t1 = t0 + 600*1000000 // ten minutes later
	batch := append(eventPicks(t0), func() []schema.Pick {
		second := eventPicks(t1)
		for i := range second {
			second[i].Identifier += 100
		}
		return second
	}()...)

	origins, _ := Associate(batch, Options{})
	require.Len(t, origins, 2)
	assert.Less(t, origins[0].Time, origins[1].Time)
}

func TestAssociateDeduplicatesStationPhase(t *testing.T) {
	const t0 = int64(1628803600000000)
	picks := eventPicks(t0)
	// A weaker duplicate P on FORK within the window.
	weak := pick(99, "FORK", schema.PhaseP, t0+1100000)
	lower := 0.2
	weak.Posterior = &lower
	picks = append(picks, weak)

	origins, _ := Associate(picks, Options{})
	require.Len(t, origins, 1)
	require.Len(t, origins[0].Arrivals, 8)
	for _, a := range origins[0].Arrivals {
		assert.NotEqualValues(t, 99, a.PickIdentifier)
	}
}

func TestServiceHandle(t *testing.T) {
	svc := NewService(Options{}, zerolog.Nop())
	reply := svc.Handle(&Request{Picks: eventPicks(1628803600000000), Identifier: 17})
	resp, ok := reply.(*Response)
	require.True(t, ok)
	assert.Equal(t, service.Success, resp.ReturnCode)
	assert.EqualValues(t, 17, resp.Identifier)
	require.Len(t, resp.Origins, 1)
}
