// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/internal/message"
	"github.com/SeisFab/sf-backbone/pkg/schema"
)

func testPick(id uint64) *schema.Pick {
	return &schema.Pick{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
		},
		Time:          1628803599000000,
		PhaseHint:     schema.PhaseP,
		Identifier:    id,
		StandardError: 0.05,
	}
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	ctx, err := NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	addr := "inproc://sfb-test-pubsub"

	pub := NewPublisher(ctx, zerolog.Nop())
	require.NoError(t, pub.Initialize(Options{Address: addr, Bind: true}))
	defer pub.Close()

	sub := NewSubscriber(ctx, zerolog.Nop())
	require.NoError(t, sub.Initialize(Options{
		Address:      addr,
		MessageTypes: message.NewRegistry(&schema.Pick{}),
	}))
	defer sub.Close()

	// Let the subscription propagate to the XPUB side.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, pub.Send(testPick(42)))

	var got schema.Message
	deadline := time.Now().Add(2 * time.Second)
	for got == nil && time.Now().Before(deadline) {
		got, err = sub.Receive()
		require.NoError(t, err)
	}
	require.NotNil(t, got, "message did not arrive")
	pick, ok := got.(*schema.Pick)
	require.True(t, ok)
	assert.EqualValues(t, 42, pick.Identifier)
}

func TestSubscriberSkipsOffListTypes(t *testing.T) {
	ctx, err := NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	addr := "inproc://sfb-test-offlist"

	pub := NewPublisher(ctx, zerolog.Nop())
	require.NoError(t, pub.Initialize(Options{Address: addr, Bind: true}))
	defer pub.Close()

	// Subscriber only allows origins; the pick prefix is never
	// subscribed, so the fabric filters it out and nothing arrives.
	sub := NewSubscriber(ctx, zerolog.Nop())
	require.NoError(t, sub.Initialize(Options{
		Address:      addr,
		MessageTypes: message.NewRegistry(&schema.Origin{}),
	}))
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pub.Send(testPick(1)))

	got, err := sub.ReceiveTimeout(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPublisherBackpressure(t *testing.T) {
	ctx, err := NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	addr := "inproc://sfb-test-backpressure"

	pub := NewPublisher(ctx, zerolog.Nop())
	require.NoError(t, pub.Initialize(Options{
		Address:           addr,
		Bind:              true,
		SendHighWaterMark: 10,
		SendTimeout:       100 * time.Millisecond,
	}))
	defer pub.Close()

	// A subscriber that never reads: its pipes fill and the no-drop
	// publisher runs into its high-water mark.
	sub := NewSubscriber(ctx, zerolog.Nop())
	require.NoError(t, sub.Initialize(Options{
		Address:              addr,
		ReceiveHighWaterMark: 1,
		MessageTypes:         message.NewRegistry(&schema.Pick{}),
	}))
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	var sawBackpressure bool
	for i := 0; i < 100; i++ {
		if err := pub.Send(testPick(uint64(i))); err != nil {
			require.ErrorIs(t, err, ErrBackpressure)
			sawBackpressure = true
			break
		}
	}
	assert.True(t, sawBackpressure, "send never hit the high-water mark")
}

func TestRequestTimeout(t *testing.T) {
	ctx, err := NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	addr := "inproc://sfb-test-noreplier"

	// A router that accepts the request but never answers.
	router, err := ctx.NewSocket(zmq.ROUTER)
	require.NoError(t, err)
	defer router.Close()
	require.NoError(t, router.Bind(addr))

	req := NewRequestor(ctx, zerolog.Nop())
	require.NoError(t, req.Initialize(Options{
		Address:      addr,
		MessageTypes: message.NewRegistry(&schema.Pick{}),
	}))
	defer req.Close()

	_, err = req.RequestWithDeadline(testPick(1), 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendBeforeInitialize(t *testing.T) {
	ctx, err := NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	pub := NewPublisher(ctx, zerolog.Nop())
	assert.ErrorIs(t, pub.Send(testPick(1)), ErrNotInitialized)

	sub := NewSubscriber(ctx, zerolog.Nop())
	_, err = sub.Receive()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDoubleCloseIsNoOp(t *testing.T) {
	ctx, err := NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	pub := NewPublisher(ctx, zerolog.Nop())
	require.NoError(t, pub.Initialize(Options{Address: "inproc://sfb-test-close", Bind: true}))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
}

func TestKeypairGeneration(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)
	assert.NotEmpty(t, kp.Public)
	assert.NotEmpty(t, kp.Secret)
	assert.NotEqual(t, kp.Public, kp.Secret)
}
