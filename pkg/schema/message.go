// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package schema

// Message is implemented by every value that crosses a transport boundary.
// The transport layer handles messages polymorphically: it serializes by
// value and deserializes through a registry of NewEmpty constructors keyed
// by type tag. Versions follow MAJOR.MINOR.PATCH; readers accept any message
// whose major version matches their own.
type Message interface {
	// TypeTag uniquely names the message type on the wire.
	TypeTag() string
	// Version is the writer's MAJOR.MINOR.PATCH message version.
	Version() string
	// Clone returns a deep copy.
	Clone() Message
	// NewEmpty returns a fresh zero value of the same concrete type.
	NewEmpty() Message
}
