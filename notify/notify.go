// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package notify delivers subtask failure records to the chat channels
// operators watch. Delivery is best effort and never retried: a failed
// notification is logged and counted, nothing more.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/juju/errors"
	jujuhttp "github.com/juju/http/v2"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("dsrworker.notify")

// DefaultTicketBaseURL is the console host used for ticket deep links
// when no other is configured.
const DefaultTicketBaseURL = "https://app.securiti.ai"

// Record is a snapshot of the identifying fields of a failed subtask
// plus the failure message. It is built at the moment of failure and
// passed by value; nothing retains it after dispatch.
type Record struct {
	Worker      string
	Environment string
	FormTitle   string
	TicketID    string
	TaskID      string
	SubtaskID   string
	Subtask     string
	Message     string
}

// Logger is the logging surface channel construction needs.
type Logger interface {
	IsTraceEnabled() bool
	Errorf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Transport defines a type for making the actual request.
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

// Channel delivers a record to one destination.
type Channel interface {
	// Name identifies the channel in logs.
	Name() string

	// Notify posts the record. Called at most once per record.
	Notify(ctx context.Context, r Record) error
}

// formatter builds a channel's native payload for a record.
type formatter func(r Record) interface{}

// ChannelConfig holds the ingredients for building a webhook channel.
type ChannelConfig struct {
	// URL is the webhook endpoint.
	URL string

	// TicketBaseURL is the console host for deep links. Left empty,
	// DefaultTicketBaseURL is used.
	TicketBaseURL string

	// Transport performs the HTTP requests. Left nil, a default client
	// is used.
	Transport Transport

	// Logger is used for trace output and the default transport.
	Logger Logger
}

// Validate returns an error if the config cannot build a channel.
func (c ChannelConfig) Validate() error {
	if c.URL == "" {
		return errors.NotValidf("empty URL")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

func (c ChannelConfig) transport() Transport {
	if c.Transport != nil {
		return c.Transport
	}
	return jujuhttp.NewClient(jujuhttp.WithLogger(c.Logger))
}

func (c ChannelConfig) ticketBaseURL() string {
	if c.TicketBaseURL != "" {
		return c.TicketBaseURL
	}
	return DefaultTicketBaseURL
}

// WebhookChannel posts records to a single webhook and expects one
// particular status code back; the two chat products acknowledge with
// different codes, so the expectation is per channel.
type WebhookChannel struct {
	name      string
	url       string
	expected  int
	format    formatter
	transport Transport
}

// NewTeamsChannel returns a channel delivering adaptive cards to a
// Microsoft Teams webhook, which acknowledges with 202.
func NewTeamsChannel(config ChannelConfig) (*WebhookChannel, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &WebhookChannel{
		name:      "teams",
		url:       config.URL,
		expected:  http.StatusAccepted,
		format:    teamsCard(config.ticketBaseURL()),
		transport: config.transport(),
	}, nil
}

// NewGoogleChatChannel returns a channel delivering cards to a Google
// Chat webhook, which acknowledges with 200.
func NewGoogleChatChannel(config ChannelConfig) (*WebhookChannel, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &WebhookChannel{
		name:      "google-chat",
		url:       config.URL,
		expected:  http.StatusOK,
		format:    googleChatCard(config.ticketBaseURL()),
		transport: config.transport(),
	}, nil
}

// Name implements Channel.
func (w *WebhookChannel) Name() string {
	return w.name
}

// Notify implements Channel. One POST, no retry.
func (w *WebhookChannel) Notify(ctx context.Context, r Record) error {
	buffer := new(bytes.Buffer)
	if err := json.NewEncoder(buffer).Encode(w.format(r)); err != nil {
		return errors.Trace(err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, buffer)
	if err != nil {
		return errors.Annotate(err, "can not make new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.transport.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != w.expected {
		return errors.Errorf("%s webhook responded %d, want %d", w.name, resp.StatusCode, w.expected)
	}
	return nil
}

// Dispatcher fans one record out to every configured channel. Channels
// are independent: a failure on one never stops the others.
type Dispatcher struct {
	channels []Channel
}

// NewDispatcher returns a Dispatcher over the given channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Notify delivers the record to every channel. The returned error
// names the channels that failed; callers log it and move on, they do
// not retry.
func (d *Dispatcher) Notify(ctx context.Context, r Record) error {
	var failed []string
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, r); err != nil {
			logger.Errorf("notifying %s about ticket %s subtask %s: %v", ch.Name(), r.TicketID, r.SubtaskID, err)
			failed = append(failed, ch.Name())
			continue
		}
		logger.Infof("notified %s about ticket %s subtask %s", ch.Name(), r.TicketID, r.SubtaskID)
	}
	if len(failed) > 0 {
		return errors.Errorf("notification failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// NewForTicket builds a dispatcher for a ticket's configured webhooks,
// skipping channels with no URL.
func NewForTicket(teamsURL, googleChatURL string, config ChannelConfig) (*Dispatcher, error) {
	var channels []Channel
	if teamsURL != "" {
		teamsConfig := config
		teamsConfig.URL = teamsURL
		teams, err := NewTeamsChannel(teamsConfig)
		if err != nil {
			return nil, errors.Trace(err)
		}
		channels = append(channels, teams)
	}
	if googleChatURL != "" {
		chatConfig := config
		chatConfig.URL = googleChatURL
		chat, err := NewGoogleChatChannel(chatConfig)
		if err != nil {
			return nil, errors.Trace(err)
		}
		channels = append(channels, chat)
	}
	return NewDispatcher(channels...), nil
}
