// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package platform is a client for the privacy management platform's
// DSR admin and reporting APIs. It covers the two calls the worker
// needs: marking a subtask resolved and counting the subtasks still
// recorded against a task.
package platform

import (
	"context"
	"net/url"

	"github.com/juju/errors"

	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/platform/transport"
)

// DefaultServerURL is the platform API root used when no other URL is
// configured.
const DefaultServerURL = "https://app.securiti.ai"

// Config holds the ingredients for building a platform client.
type Config struct {
	// URL is the platform API root.
	URL string

	// Credentials is the token triplet attached to every request.
	Credentials dsr.Credentials

	// Transport performs the HTTP requests. Left nil, a default
	// transport with the client's error handling is used.
	Transport Transport

	// Logger is used for trace and error output.
	Logger Logger
}

// Validate returns an error if the config cannot build a client.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.NotValidf("empty URL")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return errors.NotValidf("URL %q", c.URL)
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Client interacts with the platform's DSR APIs on behalf of one
// ticket run; it carries that run's credential headers.
type Client struct {
	url    string
	client RESTClient
	logger Logger
}

// NewClient returns a platform client built from the supplied config.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	httpTransport := config.Transport
	if httpTransport == nil {
		httpTransport = DefaultHTTPTransport(config.Logger)
	}
	requester := NewAPIRequester(httpTransport, config.Logger)
	return &Client{
		url:    trimBaseURL(config.URL),
		client: NewHTTPRESTClient(requester, config.Credentials.Headers()),
		logger: config.Logger,
	}, nil
}

// MarkResolved asks the platform to set a subtask's response status to
// resolved. The returned value is the body-level acknowledgement code:
// zero means the platform accepted the update and removal is pending,
// anything else is the platform refusing it. Transport failures and
// non-2xx responses come back as errors from the request layer.
func (c *Client) MarkResolved(ctx context.Context, subtaskID string) (int, error) {
	var result transport.UpdateResponse
	resp, err := c.client.Post(ctx, c.subtaskResponseURL(subtaskID), nil,
		transport.UpdateRequest{Status: transport.StatusResolved}, &result)
	if err != nil {
		return 0, errors.Trace(err)
	}
	c.logger.Tracef("mark resolved subtask %q: http %d, status %d", subtaskID, resp.StatusCode, result.Status)
	return result.Status, nil
}

// TotalSubtasks runs the reporting query for the number of subtasks
// still recorded against the given task of the given ticket. A ticket
// or task the platform no longer knows about yields zero.
func (c *Client) TotalSubtasks(ctx context.Context, ticketID, taskID string) (int, error) {
	var result transport.QueryResponse
	resp, err := c.client.Post(ctx, c.reportingQueryURL(), nil,
		transport.NewTaskQuery(ticketID, taskID), &result)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if len(result.Data) == 0 {
		c.logger.Tracef("task query ticket %q task %q: http %d, no rows", ticketID, taskID, resp.StatusCode)
		return 0, nil
	}
	total := result.Data[0].TotalSubtasks
	c.logger.Tracef("task query ticket %q task %q: http %d, total %d", ticketID, taskID, resp.StatusCode, total)
	return total, nil
}

func (c *Client) subtaskResponseURL(subtaskID string) string {
	return c.url + "/privaci/v1/admin/dsr/subtasks/" + url.PathEscape(subtaskID) + "/response/"
}

func (c *Client) reportingQueryURL() string {
	return c.url + "/reporting/v1/sources/query?ref=getListOfTasks"
}
