// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport

import "errors"

var (
	// ErrNotInitialized is returned when an endpoint is used before
	// Initialize succeeded. This is a programming error.
	ErrNotInitialized = errors.New("endpoint not initialized")
	// ErrBackpressure is returned when a send buffer is at its high-water
	// mark and the send timeout elapsed.
	ErrBackpressure = errors.New("send high-water mark reached")
	// ErrTimeout is returned when a request deadline elapsed before the
	// matching reply arrived.
	ErrTimeout = errors.New("request timed out")
	// ErrProtocol is returned when a peer sent something that violates the
	// endpoint contract, e.g. a message type not on the allow-list.
	ErrProtocol = errors.New("protocol violation")
)
