// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package apiserver exposes the worker's HTTP API: the close-out
// endpoint the platform's webhook automation posts tickets to, plus
// health and metrics endpoints for the surrounding infrastructure.
package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canonical/dsr-worker/apiserver/params"
	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/secrets"
)

var logger = loggo.GetLogger("dsrworker.apiserver")

// TicketRunner processes one parsed ticket and reports whether every
// subtask resolved.
type TicketRunner interface {
	Run(ctx context.Context, rec audit.Recorder, ticket *dsr.Ticket) bool
}

// Config holds the dependencies of the API server.
type Config struct {
	// Store reads ticket credentials and webhook endpoints from the
	// configured secret backend.
	Store *secrets.Store

	// Runner processes parsed tickets.
	Runner TicketRunner

	// AuditLog receives the processing trail of every ticket.
	AuditLog audit.Log

	// Clock timestamps audit events.
	Clock clock.Clock

	// WorkerName identifies this worker in audit records.
	WorkerName string

	// Gatherer is the metrics registry served on /metrics.
	Gatherer prometheus.Gatherer
}

// Validate returns an error if the config is not complete.
func (config Config) Validate() error {
	if config.Store == nil {
		return errors.New("secret store not provided")
	}
	if config.Runner == nil {
		return errors.New("ticket runner not provided")
	}
	if config.AuditLog == nil {
		return errors.New("audit log not provided")
	}
	if config.Clock == nil {
		return errors.New("clock not provided")
	}
	if config.WorkerName == "" {
		return errors.New("worker name not provided")
	}
	if config.Gatherer == nil {
		return errors.New("metrics gatherer not provided")
	}
	return nil
}

// NewHandler returns the worker's root HTTP handler.
func NewHandler(config Config) (http.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	router := mux.NewRouter()
	router.Handle("/v1/dsr/close", &closeHandler{config: config}).Methods("POST")
	router.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/health", healthHandler).Methods("GET")
	return router, nil
}

func healthHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "running\n")
}

// sendStatusAndJSON sends an HTTP status code and a JSON-encoded
// response to a client.
func sendStatusAndJSON(w http.ResponseWriter, statusCode int, response interface{}) error {
	body, err := json.Marshal(response)
	if err != nil {
		return errors.Errorf("cannot marshal JSON result %#v: %v", response, err)
	}

	w.Header().Set("Content-Type", params.ContentTypeJSON)
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		return errors.Annotate(err, "cannot write response")
	}
	return nil
}
