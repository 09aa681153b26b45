// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params defines the wire structures of the worker's HTTP API.
package params

// ContentTypeJSON is the Content-Type value for JSON requests and
// responses.
const ContentTypeJSON = "application/json"

// CloseRequest is the body of a ticket close-out request. Data carries
// the ticket payload exactly as the platform's webhook automation
// produces it, single-quote delimited JSON included.
type CloseRequest struct {
	Data string `json:"data"`
}

// CloseResponse is the body of every close-out response.
type CloseResponse struct {
	// Message summarises the outcome of the request.
	Message string `json:"message"`

	// DSRID identifies the processed ticket, once known.
	DSRID string `json:"dsr_id,omitempty"`

	// Error carries the validation detail for a rejected payload.
	Error string `json:"error,omitempty"`
}
