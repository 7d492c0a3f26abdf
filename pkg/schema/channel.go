// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema holds the value types moved between the services of the
// processing pipeline: waveform packets, picks, arrivals, and origins.
// Everything here is a plain value; ownership moves with the message.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ChannelID identifies a single data stream in the network. All four parts
// are required, case-sensitive, and together form the sharding key.
type ChannelID struct {
	Network      string `cbor:"Network" json:"network"`
	Station      string `cbor:"Station" json:"station"`
	Channel      string `cbor:"Channel" json:"channel"`
	LocationCode string `cbor:"LocationCode" json:"locationCode"`
}

var ErrInvalidChannel = errors.New("channel identifier is incomplete")

// Validate checks that all four components are non-empty printable strings.
func (c *ChannelID) Validate() error {
	for _, part := range []string{c.Network, c.Station, c.Channel, c.LocationCode} {
		if part == "" {
			return ErrInvalidChannel
		}
		for _, r := range part {
			if !unicode.IsPrint(r) || r == '.' {
				return fmt.Errorf("%w: %q", ErrInvalidChannel, part)
			}
		}
	}
	return nil
}

// String renders the SEED-style dotted form, e.g. "UU.FORK.HHZ.01".
func (c ChannelID) String() string {
	return c.Network + "." + c.Station + "." + c.Channel + "." + c.LocationCode
}

// ParseChannelID splits a dotted channel name back into its four parts.
func ParseChannelID(s string) (ChannelID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return ChannelID{}, fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}
	id := ChannelID{
		Network:      parts[0],
		Station:      parts[1],
		Channel:      parts[2],
		LocationCode: parts[3],
	}
	return id, id.Validate()
}
