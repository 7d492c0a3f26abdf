// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package refine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

var testChannel = schema.ChannelID{
	Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
}

func testPick(t int64, posterior float64) schema.Pick {
	return schema.Pick{
		ChannelID: testChannel, Time: t, PhaseHint: schema.PhaseP,
		StandardError: 0.05, Posterior: &posterior,
	}
}

// fakeClock drives the queue deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(clock *fakeClock) *Queue {
	q := NewQueue(16, 100)
	q.now = clock.now
	return q
}

func TestRetrySchedule(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1628803599, 0)}
	q := newTestQueue(clock)
	require.NoError(t, q.Push(testPick(1628803599000000, 0.9)))

	// Attempt 1: immediately due.
	it := q.Pop()
	require.NotNil(t, it)
	assert.Equal(t, clock.t, it.FirstTry)

	// Not ready: rescheduled at firstTry + 3 s.
	require.NoError(t, q.Requeue(it))
	assert.Nil(t, q.Pop())
	clock.advance(3 * time.Second)
	it = q.Pop()
	require.NotNil(t, it)
	assert.Equal(t, it.FirstTry.Add(3*time.Second), it.NextTry)

	// Still not ready: rescheduled 10 s later (13 s after first try).
	require.NoError(t, q.Requeue(it))
	clock.advance(9 * time.Second)
	assert.Nil(t, q.Pop())
	clock.advance(1 * time.Second)
	it = q.Pop()
	require.NotNil(t, it)
	assert.Equal(t, it.FirstTry.Add(13*time.Second), it.NextTry)

	// Third failure drops the pick.
	assert.ErrorIs(t, q.Requeue(it), ErrExceededRetries)
	assert.Zero(t, q.Len())
}

func TestDeduplicationKeepsHigherPosterior(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1628803599, 0)}
	q := newTestQueue(clock)

	require.NoError(t, q.Push(testPick(1628803599000000, 0.80)))
	// Within one sample period (10 ms at 100 Hz): same pick.
	require.NoError(t, q.Push(testPick(1628803599005000, 0.95)))
	assert.Equal(t, 1, q.Len())

	it := q.Pop()
	require.NotNil(t, it)
	assert.Equal(t, 0.95, *it.Pick.Posterior)
	assert.EqualValues(t, 1628803599005000, it.Pick.Time)
}

func TestDistinctPicksBeyondSamplePeriod(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1628803599, 0)}
	q := newTestQueue(clock)
	require.NoError(t, q.Push(testPick(1628803599000000, 0.8)))
	require.NoError(t, q.Push(testPick(1628803599020000, 0.8)))
	assert.Equal(t, 2, q.Len())
}

func TestQueueBound(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	q := NewQueue(2, 100)
	q.now = clock.now
	require.NoError(t, q.Push(testPick(1000000, 0.5)))
	require.NoError(t, q.Push(testPick(2000000, 0.5)))
	assert.ErrorIs(t, q.Push(testPick(3000000, 0.5)), ErrQueueFull)
}
