// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vmware/stompengine/stompserver"
)

type healthResponse struct {
	Status            string `json:"status"`
	ActiveConnections int64  `json:"activeConnections"`
	Accepted          int64  `json:"accepted"`
}

// newHttpHandler serves /metrics and /healthz, wrapped with the access log
// and panic recovery.
func newHttpHandler(gatherer prometheus.Gatherer, stats stompserver.StatsSource, accessLog io.Writer) http.Handler {
	router := mux.NewRouter()
	router.Path("/metrics").Methods(http.MethodGet).Handler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	router.Path("/healthz").Methods(http.MethodGet).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := stats.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&healthResponse{
			Status:            "UP",
			ActiveConnections: s.ActiveConnections,
			Accepted:          s.Accepted,
		})
	})

	return handlers.RecoveryHandler()(
		handlers.CombinedLoggingHandler(accessLog, router))
}
