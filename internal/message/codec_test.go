// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

func samplePick() *schema.Pick {
	posterior := 0.97
	return &schema.Pick{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
		},
		Time:          1628803599000000,
		PhaseHint:     schema.PhaseP,
		Identifier:    42,
		StandardError: 0.05,
		LowerBound:    &schema.UncertaintyBound{Percentile: 5, Value: -0.1},
		UpperBound:    &schema.UncertaintyBound{Percentile: 95, Value: 0.1},
		Posterior:     &posterior,
	}
}

func TestRoundTripPick(t *testing.T) {
	reg := NewRegistry(&schema.Pick{})
	in := samplePick()

	data, err := Marshal(in)
	require.NoError(t, err)

	out, err := reg.Deserialize(in.TypeTag(), data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTripDataPacket(t *testing.T) {
	reg := NewRegistry(&schema.DataPacket{})
	in := &schema.DataPacket{
		ChannelID: schema.ChannelID{
			Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
		},
		StartTime:    1628803598000000,
		SamplingRate: 100,
		Samples:      []float64{1, 2, 3, 4.5, -6.25},
	}
	data, err := Marshal(in)
	require.NoError(t, err)
	out, err := reg.Deserialize(in.TypeTag(), data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTripOrigin(t *testing.T) {
	reg := NewRegistry(&schema.Origin{})
	rms := 0.21
	in := &schema.Origin{
		Identifier: 7, Latitude: 38.51, Longitude: -112.82, Depth: 7400,
		Time: 1628803600000000,
		Arrivals: []schema.Arrival{{
			ChannelID: schema.ChannelID{
				Network: "UU", Station: "FORK", Channel: "HHZ", LocationCode: "01",
			},
			Time: 1628803601000000, Phase: schema.PhaseP,
			PickIdentifier: 42, StandardError: 0.05,
		}},
		WeightedRMS: &rms,
	}
	data, err := Marshal(in)
	require.NoError(t, err)
	out, err := reg.Deserialize(in.TypeTag(), data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEnvelopeCarriesTypeAndVersion(t *testing.T) {
	data, err := Marshal(samplePick())
	require.NoError(t, err)

	var fields map[string]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(data, &fields))

	var typ, version string
	require.NoError(t, cbor.Unmarshal(fields["MessageType"], &typ))
	require.NoError(t, cbor.Unmarshal(fields["MessageVersion"], &version))
	assert.Equal(t, "sfb.broadcasts.pick", typ)
	assert.Equal(t, "1.0.0", version)

	tag, err := PeekType(data)
	require.NoError(t, err)
	assert.Equal(t, typ, tag)
}

func TestUnknownMessageType(t *testing.T) {
	reg := NewRegistry(&schema.Pick{})
	data, err := Marshal(samplePick())
	require.NoError(t, err)

	_, err = reg.Deserialize("sfb.broadcasts.bogus", data)
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestMalformedMessage(t *testing.T) {
	reg := NewRegistry(&schema.Pick{})
	_, err := reg.Deserialize("sfb.broadcasts.pick", []byte{0xff, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestTypeTagMismatch(t *testing.T) {
	reg := NewRegistry(&schema.Pick{}, &schema.Origin{})
	data, err := Marshal(samplePick())
	require.NoError(t, err)
	_, err = reg.Deserialize("sfb.broadcasts.origin", data)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestVersionGate(t *testing.T) {
	assert.True(t, CompatibleVersions("1.0.0", "1.7.3"))
	assert.False(t, CompatibleVersions("1.0.0", "2.0.0"))

	// A payload stamped with a different major is rejected.
	data, err := Marshal(samplePick())
	require.NoError(t, err)
	var fields map[string]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(data, &fields))
	fields["MessageVersion"], _ = cbor.Marshal("2.0.0")
	bumped, err := cbor.Marshal(fields)
	require.NoError(t, err)

	var p schema.Pick
	assert.ErrorIs(t, Unmarshal(bumped, &p), ErrVersionMismatch)
}

func TestUnknownFieldsIgnoredWithinMajor(t *testing.T) {
	data, err := Marshal(samplePick())
	require.NoError(t, err)
	var fields map[string]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(data, &fields))
	fields["FutureField"], _ = cbor.Marshal("ignored")
	extended, err := cbor.Marshal(fields)
	require.NoError(t, err)

	var p schema.Pick
	require.NoError(t, Unmarshal(extended, &p))
	assert.Equal(t, uint64(42), p.Identifier)
}
