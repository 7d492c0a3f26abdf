// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package refine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

type fakeSource struct {
	snippet []float64
	err     error
	calls   int
}

func (s *fakeSource) Snippet(schema.ChannelID, int64, int, float64) ([]float64, error) {
	s.calls++
	return s.snippet, s.err
}

type fakePicker struct{ correction float64 }

func (p *fakePicker) Refine(*schema.Pick, []float64) (float64, error) { return p.correction, nil }
func (p *fakePicker) SnippetLength() int                              { return 400 }

type fakeClassifier struct{ motion schema.FirstMotion }

func (c *fakeClassifier) Classify(*schema.Pick, []float64) (schema.FirstMotion, error) {
	return c.motion, nil
}
func (c *fakeClassifier) SnippetLength() int { return 400 }

type fakeSink struct{ picks []*schema.Pick }

func (s *fakeSink) Send(p *schema.Pick) error {
	s.picks = append(s.picks, p)
	return nil
}

func TestWorkerRefinesAndRepublishes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1628803599, 0)}
	q := newTestQueue(clock)
	source := &fakeSource{snippet: make([]float64, 400)}
	sink := &fakeSink{}
	w := NewWorker(q, source, &fakePicker{correction: 0.25},
		&fakeClassifier{motion: schema.FirstMotionUp}, sink, 100, zerolog.Nop())

	pick := testPick(1628803599000000, 0.9)
	pick.Identifier = 42
	require.NoError(t, q.Push(pick))
	require.True(t, w.ProcessOnce())

	require.Len(t, sink.picks, 1)
	refined := sink.picks[0]
	assert.EqualValues(t, 42, refined.Identifier)
	assert.EqualValues(t, 1628803599000000+250000, refined.Time)
	assert.Equal(t, schema.FirstMotionUp, refined.FirstMotion)
	assert.Zero(t, q.Len())
}

func TestWorkerDropsPickAfterThreeFailedAttempts(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1628803599, 0)}
	q := newTestQueue(clock)
	source := &fakeSource{err: ErrDataNotReady}
	sink := &fakeSink{}
	w := NewWorker(q, source, &fakePicker{}, nil, sink, 100, zerolog.Nop())

	require.NoError(t, q.Push(testPick(1628803599000000, 0.9)))

	require.True(t, w.ProcessOnce()) // attempt 1, rescheduled +3 s
	assert.Equal(t, 1, q.Len())
	clock.advance(3 * time.Second)
	require.True(t, w.ProcessOnce()) // attempt 2, rescheduled +10 s
	assert.Equal(t, 1, q.Len())
	clock.advance(10 * time.Second)
	require.True(t, w.ProcessOnce()) // attempt 3: dropped
	assert.Zero(t, q.Len())
	assert.False(t, w.ProcessOnce())

	assert.Equal(t, 3, source.calls)
	assert.Empty(t, sink.picks)
}
