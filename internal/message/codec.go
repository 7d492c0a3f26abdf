// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package message

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	// Unknown map keys are skipped so that a reader can accept messages
	// from a newer minor version of the same major.
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type envelope struct {
	MessageType    string `cbor:"MessageType"`
	MessageVersion string `cbor:"MessageVersion"`
}

// Marshal serializes m into a flat CBOR map carrying MessageType and
// MessageVersion alongside the type-specific fields.
func Marshal(m schema.Message) ([]byte, error) {
	body, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.TypeTag(), err)
	}
	var fields map[string]cbor.RawMessage
	if err := decMode.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.TypeTag(), err)
	}
	if fields == nil {
		fields = make(map[string]cbor.RawMessage, 2)
	}
	fields["MessageType"], _ = encMode.Marshal(m.TypeTag())
	fields["MessageVersion"], _ = encMode.Marshal(m.Version())
	return encMode.Marshal(fields)
}

// Unmarshal decodes data into m, rejecting payloads whose embedded type tag
// disagrees with m or whose major version is incompatible.
func Unmarshal(data []byte, m schema.Message) error {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.MessageType != "" && env.MessageType != m.TypeTag() {
		return fmt.Errorf("%w: payload is %q, want %q",
			ErrMalformedMessage, env.MessageType, m.TypeTag())
	}
	if env.MessageVersion != "" && !CompatibleVersions(m.Version(), env.MessageVersion) {
		return fmt.Errorf("%w: reader %s cannot accept %s",
			ErrVersionMismatch, m.Version(), env.MessageVersion)
	}
	if err := decMode.Unmarshal(data, m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

// PeekType extracts the embedded type tag without fully decoding the body.
func PeekType(data []byte) (string, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.MessageType == "" {
		return "", fmt.Errorf("%w: missing MessageType", ErrMalformedMessage)
	}
	return env.MessageType, nil
}
