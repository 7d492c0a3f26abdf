// Copyright (C) SeisFab contributors.
// All rights reserved. This file is part of sf-backbone.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// OpsServer is the optional per-service HTTP surface: liveness and
// Prometheus metrics. It is not part of the data plane.
type OpsServer struct {
	log    zerolog.Logger
	server *http.Server
	health func() bool
}

func NewOpsServer(log zerolog.Logger, addr string, health func() bool) *OpsServer {
	o := &OpsServer{
		log:    log.With().Str("component", "ops").Logger(),
		health: health,
	}
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", o.handleHealth).Methods(http.MethodGet)
	o.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return o
}

func (o *OpsServer) handleHealth(rw http.ResponseWriter, r *http.Request) {
	healthy := o.health == nil || o.health()
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(map[string]bool{"healthy": healthy})
}

// Start serves in the background until Stop.
func (o *OpsServer) Start() {
	go func() {
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.log.Error().Err(err).Msg("ops server failed")
		}
	}()
}

func (o *OpsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return o.server.Shutdown(ctx)
}
