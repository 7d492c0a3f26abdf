// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the plain INI files every service reads. Each
// service owns one named section; the common endpoint keys are `address`,
// `sendHighWaterMark`, `receiveHighWaterMark`, and `pollingTimeOut` (ms),
// with service-specific keys documented alongside each component.
package config

import (
	"fmt"
	"time"

	"github.com/go-ini/ini"

	"github.com/SeisFab/sf-backbone/internal/transport"
)

// File is one parsed configuration file.
type File struct {
	ini *ini.File
}

// Load parses the INI file at path.
func Load(path string) (*File, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return &File{ini: f}, nil
}

// FromBytes parses configuration held in memory. Test support.
func FromBytes(data []byte) (*File, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, err
	}
	return &File{ini: f}, nil
}

// Section wraps one named section with typed accessors.
type Section struct {
	name string
	sec  *ini.Section
}

// Section returns the named section, which must exist.
func (f *File) Section(name string) (*Section, error) {
	sec, err := f.ini.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("missing section [%s]", name)
	}
	return &Section{name: name, sec: sec}, nil
}

// HasSection reports whether the section exists.
func (f *File) HasSection(name string) bool {
	_, err := f.ini.GetSection(name)
	return err == nil
}

func (s *Section) String(key, fallback string) string {
	if !s.sec.HasKey(key) {
		return fallback
	}
	return s.sec.Key(key).String()
}

func (s *Section) Int(key string, fallback int) int {
	if !s.sec.HasKey(key) {
		return fallback
	}
	v, err := s.sec.Key(key).Int()
	if err != nil {
		return fallback
	}
	return v
}

func (s *Section) Int64(key string, fallback int64) int64 {
	if !s.sec.HasKey(key) {
		return fallback
	}
	v, err := s.sec.Key(key).Int64()
	if err != nil {
		return fallback
	}
	return v
}

func (s *Section) Float(key string, fallback float64) float64 {
	if !s.sec.HasKey(key) {
		return fallback
	}
	v, err := s.sec.Key(key).Float64()
	if err != nil {
		return fallback
	}
	return v
}

func (s *Section) Bool(key string, fallback bool) bool {
	if !s.sec.HasKey(key) {
		return fallback
	}
	v, err := s.sec.Key(key).Bool()
	if err != nil {
		return fallback
	}
	return v
}

// Milliseconds reads a duration key expressed in milliseconds.
func (s *Section) Milliseconds(key string, fallback time.Duration) time.Duration {
	if !s.sec.HasKey(key) {
		return fallback
	}
	v, err := s.sec.Key(key).Int64()
	if err != nil {
		return fallback
	}
	return time.Duration(v) * time.Millisecond
}

// Require reads a key that must be present.
func (s *Section) Require(key string) (string, error) {
	if !s.sec.HasKey(key) {
		return "", fmt.Errorf("section [%s] is missing %q", s.name, key)
	}
	return s.sec.Key(key).String(), nil
}

// Endpoint assembles the transport options from the common keys.
func (s *Section) Endpoint() (transport.Options, error) {
	address, err := s.Require("address")
	if err != nil {
		return transport.Options{}, err
	}
	return transport.Options{
		Address:              address,
		SendHighWaterMark:    s.Int("sendHighWaterMark", 0),
		ReceiveHighWaterMark: s.Int("receiveHighWaterMark", 0),
		PollingTimeout:       s.Milliseconds("pollingTimeOut", 0),
	}, nil
}
