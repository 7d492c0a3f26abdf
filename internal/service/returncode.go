// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

// ReturnCode is the outcome carried in every service reply.
type ReturnCode int32

const (
	// Success means the request was processed and the payload is valid.
	Success ReturnCode = 0
	// InvalidMessage means the request failed validation; retrying the
	// same request will fail again.
	InvalidMessage ReturnCode = 1
	// AlgorithmFailure means the model or algorithm threw; the caller may
	// retry with different input.
	AlgorithmFailure ReturnCode = 2
	// NoSensor means the named channel is not known to the service.
	NoSensor ReturnCode = 3
	// NoData means the channel is known but the window held nothing.
	NoData ReturnCode = 4
	// Unavailable means a backing dependency is down; the service fails
	// closed rather than risk inconsistent answers.
	Unavailable ReturnCode = 5
)

func (c ReturnCode) String() string {
	switch c {
	case Success:
		return "success"
	case InvalidMessage:
		return "invalidMessage"
	case AlgorithmFailure:
		return "algorithmFailure"
	case NoSensor:
		return "noSensor"
	case NoData:
		return "noData"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}
