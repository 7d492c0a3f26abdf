// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// sf-backbone is the service fleet of the real-time seismic processing
// backbone. One subcommand runs one service against a named section of
// the shared INI configuration.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SeisFab/sf-backbone/internal/config"
)

// Exit codes.
const (
	exitOK          = 0
	exitConfigError = 1
	exitInitError   = 2
	exitRuntime     = 3
)

var (
	flagConfig   string
	flagSection  string
	flagLogLevel string
)

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(flagLogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func loadConfig(log zerolog.Logger) *config.File {
	f, err := config.Load(flagConfig)
	if err != nil {
		log.Error().Err(err).Msg("configuration unreadable")
		os.Exit(exitConfigError)
	}
	return f
}

func section(f *config.File, log zerolog.Logger, fallback string) *config.Section {
	name := flagSection
	if name == "" {
		name = fallback
	}
	sec, err := f.Section(name)
	if err != nil {
		log.Error().Err(err).Msg("configuration section missing")
		os.Exit(exitConfigError)
	}
	return sec
}

func main() {
	root := &cobra.Command{
		Use:           "sf-backbone",
		Short:         "Real-time seismic analysis backbone services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "sf-backbone.ini",
		"path to the INI configuration file")
	root.PersistentFlags().StringVar(&flagSection, "section", "",
		"configuration section (defaults to the service name)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"log level: trace, debug, info, warn, error")

	root.AddCommand(
		newBrokerCommand(),
		newPacketCacheCommand(),
		newDetectorCommand(),
		newPickerCommand(),
		newFirstMotionCommand(),
		newLocatorCommand(),
		newAssociatorCommand(),
		newTravelTimeCommand(),
		newIncrementerCommand(),
		newRefineCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntime)
	}
}
