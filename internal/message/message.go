// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package message implements the self-describing binary envelope used on
// every wire in the pipeline. A message is a CBOR-encoded keyed map holding
// at least MessageType and MessageVersion plus the type-specific fields.
// Deserialization goes through a registry of constructors keyed by type
// tag; unknown tags and incompatible major versions fail cleanly.
package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/SeisFab/sf-backbone/pkg/schema"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrVersionMismatch    = errors.New("message version mismatch")
)

// Registry maps type tags to prototype messages. The transport layer holds
// one registry per endpoint listing the types that endpoint accepts.
type Registry struct {
	mu         sync.RWMutex
	prototypes map[string]schema.Message
}

func NewRegistry(prototypes ...schema.Message) *Registry {
	r := &Registry{prototypes: make(map[string]schema.Message, len(prototypes))}
	for _, p := range prototypes {
		r.Add(p)
	}
	return r
}

// Add registers a prototype. Re-registering a tag replaces the prototype.
func (r *Registry) Add(prototype schema.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prototypes[prototype.TypeTag()] = prototype
}

// Contains reports whether the tag is on the allow-list.
func (r *Registry) Contains(typeTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.prototypes[typeTag]
	return ok
}

// Get returns a fresh empty instance for the tag.
func (r *Registry) Get(typeTag string) (schema.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prototypes[typeTag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, typeTag)
	}
	return p.NewEmpty(), nil
}

// Tags lists the registered type tags.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.prototypes))
	for tag := range r.prototypes {
		tags = append(tags, tag)
	}
	return tags
}

// Deserialize decodes data into a fresh message of the given tag, applying
// the registry allow-list and the major-version gate.
func (r *Registry) Deserialize(typeTag string, data []byte) (schema.Message, error) {
	m, err := r.Get(typeTag)
	if err != nil {
		return nil, err
	}
	if err := Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// major parses the MAJOR component of a MAJOR.MINOR.PATCH version string.
func major(version string) (int, error) {
	head, _, ok := strings.Cut(version, ".")
	if !ok {
		return 0, fmt.Errorf("%w: bad version %q", ErrMalformedMessage, version)
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("%w: bad version %q", ErrMalformedMessage, version)
	}
	return n, nil
}

// CompatibleVersions reports whether a reader at mine can accept theirs.
func CompatibleVersions(mine, theirs string) bool {
	a, err := major(mine)
	if err != nil {
		return false
	}
	b, err := major(theirs)
	if err != nil {
		return false
	}
	return a == b
}
