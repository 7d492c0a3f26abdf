// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package refine drives the pick refinement stage: raw detector picks
// wait in a bounded retry queue until their waveform lands in the cache,
// are refined by the picker and first-motion services, and re-broadcast.
// The retry schedule deliberately tolerates real-time telemetry lag.
package refine

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// Retry schedule: immediately, at firstTry+3s, at firstTry+13s, then drop.
const (
	firstRetryDelay  = 3 * time.Second
	secondRetryDelay = 10 * time.Second
	maxTries         = 3
)

// ErrExceededRetries reports a pick whose data never arrived.
var ErrExceededRetries = errors.New("pick exceeded its retry budget")

// DefaultQueueBound caps pending picks per queue.
const DefaultQueueBound = 8192

var ErrQueueFull = errors.New("refinement queue full")

// Item is one pick waiting for refinement.
type Item struct {
	Pick     schema.Pick
	FirstTry time.Time
	NextTry  time.Time
	Tries    int

	index int
}

// Reschedule advances the item to its next attempt, or fails with
// ErrExceededRetries after the third try.
func (it *Item) Reschedule() error {
	it.Tries++
	switch it.Tries {
	case 1:
		it.NextTry = it.FirstTry.Add(firstRetryDelay)
	case 2:
		it.NextTry = it.NextTry.Add(secondRetryDelay)
	default:
		return ErrExceededRetries
	}
	return nil
}

// itemHeap orders by NextTry.
type itemHeap []*Item

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return h[i].NextTry.Before(h[j].NextTry) }
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *itemHeap) Push(x any)        { it := x.(*Item); it.index = len(*h); *h = append(*h, it) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is the bounded retry queue. Near-coincident picks on the same
// channel (onsets within one sample period) are deduplicated; the higher
// detector posterior wins.
type Queue struct {
	mu           sync.Mutex
	items        itemHeap
	bound        int
	samplePeriod time.Duration
	now          func() time.Time
}

// NewQueue builds a queue for channels at the given nominal rate.
func NewQueue(bound int, nominalRate float64) *Queue {
	if bound <= 0 {
		bound = DefaultQueueBound
	}
	if nominalRate <= 0 {
		nominalRate = 100
	}
	return &Queue{
		bound:        bound,
		samplePeriod: time.Duration(float64(time.Second) / nominalRate),
		now:          time.Now,
	}
}

// Push enqueues a pick for immediate first attempt. A duplicate of a
// pending pick replaces it only when its posterior is higher.
func (q *Queue) Push(p schema.Pick) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.Pick.ChannelID != p.ChannelID || it.Pick.PhaseHint != p.PhaseHint {
			continue
		}
		dt := time.Duration(abs64(it.Pick.Time-p.Time)) * time.Microsecond
		if dt > q.samplePeriod {
			continue
		}
		if posterior(&p) > posterior(&it.Pick) {
			it.Pick = p
		}
		return nil
	}

	if len(q.items) >= q.bound {
		return ErrQueueFull
	}
	now := q.now()
	heap.Push(&q.items, &Item{Pick: p, FirstTry: now, NextTry: now})
	return nil
}

// Pop hands out the due item with the earliest NextTry, or nil when
// nothing is due yet.
func (q *Queue) Pop() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0].NextTry.After(q.now()) {
		return nil
	}
	return heap.Pop(&q.items).(*Item)
}

// Requeue returns a not-ready item to the schedule. On the third failure
// it reports ErrExceededRetries and the item is dropped.
func (q *Queue) Requeue(it *Item) error {
	if err := it.Reschedule(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.bound {
		return ErrQueueFull
	}
	heap.Push(&q.items, it)
	return nil
}

// Len reports the pending item count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func posterior(p *schema.Pick) float64 {
	if p.Posterior != nil {
		return *p.Posterior
	}
	return 0
}
