// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dsr holds the domain model for a data-subject-request (DSR)
// close-out: the ticket under processing, its subtasks, and the outcome
// of resolving each one. Values are built from a single inbound payload
// at the start of an invocation and discarded at the end; nothing here
// is persisted.
package dsr

import (
	"net/http"
	"strings"
)

// Ticket is one DSR ticket to close out. The identifier is immutable
// once parsed, and Subtasks preserves the platform's ordering; the
// orchestrator processes them left to right.
type Ticket struct {
	// ID is the platform's ticket identifier.
	ID string

	// Environment is the deployment tag derived from the secret path
	// template: "UAT" when the template mentions uat, otherwise "PROD".
	Environment string

	// FormTitle is the display title of the DSR form the ticket was
	// raised from.
	FormTitle string

	// SecretTemplate is the credential-store path template carried in
	// the payload, with a {type} placeholder.
	SecretTemplate string

	// Subtasks is the ordered work list for the ticket.
	Subtasks []Subtask

	// Channels holds the notification webhook endpoints, populated
	// from the credential store before processing starts.
	Channels Channels

	// Credentials holds the platform API token triplet, populated from
	// the credential store before processing starts.
	Credentials Credentials
}

// Subtask is an individual unit of work within a ticket. It reflects
// platform-side state; this worker never creates or deletes one.
type Subtask struct {
	ID     string
	TaskID string
	Title  string
}

// Outcome is the immutable result of resolving one subtask: whether the
// platform confirmed it resolved and removed, and a human-readable
// detail for the failure path.
type Outcome struct {
	Success bool
	Detail  string
}

// Credentials is the DSR API token triplet sent as request headers on
// every platform call.
type Credentials struct {
	APIKey    string `mapstructure:"X-API-KEY"`
	APISecret string `mapstructure:"X-API-SECRET"`
	Tenant    string `mapstructure:"X-TIDENT"`
}

// Headers returns the credential triplet in platform header form.
func (c Credentials) Headers() http.Header {
	h := make(http.Header)
	h.Set("X-API-KEY", c.APIKey)
	h.Set("X-API-SECRET", c.APISecret)
	h.Set("X-TIDENT", c.Tenant)
	return h
}

// Channels holds the two notification webhook endpoints for a ticket.
type Channels struct {
	Teams      string `mapstructure:"microsoftTeams"`
	GoogleChat string `mapstructure:"googleChat"`
}

const (
	secretTypePlaceholder = "{type}"

	tokenSecretType   = "dsr"
	channelSecretType = "global"

	tokenSecretSuffix   = "token"
	channelSecretSuffix = "channel"
)

// TokenSecretPath returns the credential-store path holding the
// platform API token triplet for this ticket's environment.
func (t *Ticket) TokenSecretPath() string {
	return strings.Replace(t.SecretTemplate, secretTypePlaceholder, tokenSecretType, 1) + tokenSecretSuffix
}

// ChannelSecretPath returns the credential-store path holding the
// notification webhook endpoints.
func (t *Ticket) ChannelSecretPath() string {
	return strings.Replace(t.SecretTemplate, secretTypePlaceholder, channelSecretType, 1) + channelSecretSuffix
}

// environmentFor derives the environment tag from the secret path
// template, following the platform provisioning convention that UAT
// stacks carry "uat" somewhere in their secret paths.
func environmentFor(secretTemplate string) string {
	resolved := strings.Replace(secretTemplate, secretTypePlaceholder, tokenSecretType, 1)
	if strings.Contains(resolved, "uat") {
		return "UAT"
	}
	return "PROD"
}
