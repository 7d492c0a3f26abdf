// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package refine

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

// ErrDataNotReady marks a snippet request whose waveform has not reached
// the cache yet; the pick goes back on the retry schedule.
var ErrDataNotReady = errors.New("waveform not yet in cache")

// WaveformSource serves fixed-length snippets centered on an onset,
// already on the refiner's nominal grid. Backed by the packet cache
// service in production.
type WaveformSource interface {
	Snippet(ch schema.ChannelID, center int64, samples int, rate float64) ([]float64, error)
}

// OnsetRefiner returns the correction in seconds for a snippet centered
// on the seed onset. Backed by a picker service requestor.
type OnsetRefiner interface {
	Refine(pick *schema.Pick, snippet []float64) (float64, error)
	SnippetLength() int
}

// PolarityClassifier classifies the first motion of a refined P pick.
// Backed by the first-motion service requestor.
type PolarityClassifier interface {
	Classify(pick *schema.Pick, snippet []float64) (schema.FirstMotion, error)
	SnippetLength() int
}

// PickSink receives refined picks. Backed by the pick publisher.
type PickSink interface {
	Send(p *schema.Pick) error
}

// Worker drains one refinement queue. Picks whose waveform is not ready
// go back on the retry schedule; after the budget is spent they are
// dropped and logged.
type Worker struct {
	queue      *Queue
	source     WaveformSource
	picker     OnsetRefiner
	classifier PolarityClassifier
	sink       PickSink
	log        zerolog.Logger
	rate       float64

	stopped atomic.Bool
	wg      sync.WaitGroup
}

func NewWorker(queue *Queue, source WaveformSource, picker OnsetRefiner,
	classifier PolarityClassifier, sink PickSink, rate float64, log zerolog.Logger,
) *Worker {
	if rate <= 0 {
		rate = 100
	}
	return &Worker{
		queue:      queue,
		source:     source,
		picker:     picker,
		classifier: classifier,
		sink:       sink,
		rate:       rate,
		log:        log.With().Str("component", "pickRefiner").Logger(),
	}
}

// Start launches the drain loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for !w.stopped.Load() {
			it := w.queue.Pop()
			if it == nil {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			w.attempt(it)
		}
	}()
}

// Stop halts the loop and waits for the in-flight attempt.
func (w *Worker) Stop() {
	w.stopped.Store(true)
	w.wg.Wait()
}

// ProcessOnce runs a single queue drain step. Test support.
func (w *Worker) ProcessOnce() bool {
	it := w.queue.Pop()
	if it == nil {
		return false
	}
	w.attempt(it)
	return true
}

func (w *Worker) attempt(it *Item) {
	refined, err := w.refine(&it.Pick)
	if err == nil {
		if err := w.sink.Send(refined); err != nil {
			w.log.Warn().Err(err).Uint64("pick", refined.Identifier).
				Msg("refined pick not published")
		}
		return
	}
	if !errors.Is(err, ErrDataNotReady) {
		w.log.Warn().Err(err).Uint64("pick", it.Pick.Identifier).Msg("refinement failed")
		return
	}
	if err := w.queue.Requeue(it); err != nil {
		w.log.Warn().Err(err).Uint64("pick", it.Pick.Identifier).
			Str("channel", it.Pick.ChannelID.String()).Msg("dropping pick")
	}
}

// refine runs the picker and, for P picks, the polarity classifier. The
// refined pick keeps its identifier; its time moves by the correction.
func (w *Worker) refine(p *schema.Pick) (*schema.Pick, error) {
	snippet, err := w.source.Snippet(p.ChannelID, p.Time, w.picker.SnippetLength(), w.rate)
	if err != nil {
		return nil, err
	}
	correction, err := w.picker.Refine(p, snippet)
	if err != nil {
		return nil, err
	}

	out := *p.Clone().(*schema.Pick)
	out.Time = p.Time + int64(math.Round(correction*1e6))

	if p.PhaseHint == schema.PhaseP && w.classifier != nil {
		fmSnippet := snippet
		if w.classifier.SnippetLength() != w.picker.SnippetLength() {
			fmSnippet, err = w.source.Snippet(
				out.ChannelID, out.Time, w.classifier.SnippetLength(), w.rate)
			if err != nil {
				// The onset is already refined; polarity is best-effort.
				fmSnippet = nil
			}
		}
		if fmSnippet != nil {
			if motion, err := w.classifier.Classify(&out, fmSnippet); err == nil {
				out.FirstMotion = motion
			}
		}
	}
	return &out, nil
}
