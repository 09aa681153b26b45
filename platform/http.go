// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"sort"
	"strings"

	"github.com/juju/errors"
	jujuhttp "github.com/juju/http/v2"
	"gopkg.in/httprequest.v1"
)

// MIME represents a MIME type for identifying requests and response bodies.
type MIME = string

const (
	// JSON represents the MIME type for JSON request and response types.
	JSON MIME = "application/json"
)

// maxErrorBody caps how much of an error response body is retained for
// failure details.
const maxErrorBody = 8 * 1024

// Logger is the logging surface the platform client needs.
type Logger interface {
	IsTraceEnabled() bool
	Errorf(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Transport defines a type for making the actual request.
type Transport interface {
	// Do performs the *http.Request and returns a *http.Response or an error
	// if it fails to construct the transport.
	Do(*http.Request) (*http.Response, error)
}

// DefaultHTTPTransport creates a new HTTPTransport.
func DefaultHTTPTransport(logger Logger) Transport {
	return jujuhttp.NewClient(
		jujuhttp.WithLogger(logger),
	)
}

// APIRequester creates a wrapper around the transport to allow for better
// error handling.
type APIRequester struct {
	transport Transport
	logger    Logger
}

// NewAPIRequester creates a new http.Client for making requests to a server.
func NewAPIRequester(transport Transport, logger Logger) *APIRequester {
	return &APIRequester{
		transport: transport,
		logger:    logger,
	}
}

// Do performs the *http.Request and returns a *http.Response or an
// error. A request that timed out comes back wrapping ErrTimeout so
// callers can treat it as transient; any other transport failure is
// returned as-is. A response outside the 2xx range is turned into a
// *StatusError carrying the status code and a bounded copy of the body.
func (t *APIRequester) Do(req *http.Request) (*http.Response, error) {
	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpRequest(req, true); err == nil {
			t.logger.Tracef("%s request %s", req.Method, data)
		} else {
			t.logger.Tracef("%s request DumpRequest error %s", req.Method, err.Error())
		}
	}

	resp, err := t.transport.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, errors.Trace(err)
	}

	if t.logger.IsTraceEnabled() {
		if data, err := httputil.DumpResponse(resp, true); err == nil {
			t.logger.Tracef("%s response %s", req.Method, data)
		} else {
			t.logger.Tracef("%s response DumpResponse error %s", req.Method, err.Error())
		}
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode <= http.StatusNoContent {
		return resp, nil
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	t.logger.Errorf("%s %s responded %d: %s", req.Method, req.URL.String(), resp.StatusCode, body)
	return nil, &StatusError{
		Code: resp.StatusCode,
		Body: string(body),
	}
}

// isTimeout reports whether err is a deadline or network timeout as
// opposed to a broken transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// RESTResponse abstracts away the underlying response from the implementation.
type RESTResponse struct {
	StatusCode int
}

// RESTClient defines a type for making requests to a server.
type RESTClient interface {
	// Post performs POST requests to a given URL.
	Post(context.Context, string, http.Header, interface{}, interface{}) (RESTResponse, error)
}

// HTTPRESTClient represents a RESTClient that expects to interact with a
// HTTP transport.
type HTTPRESTClient struct {
	transport Transport
	headers   http.Header
}

// NewHTTPRESTClient creates a new HTTPRESTClient
func NewHTTPRESTClient(transport Transport, headers http.Header) *HTTPRESTClient {
	return &HTTPRESTClient{
		transport: transport,
		headers:   headers,
	}
}

// Post makes a POST request to the given URL, sending the body as JSON
// and parsing the result as JSON into the given result value, which
// should be a pointer to the expected data.
func (c *HTTPRESTClient) Post(ctx context.Context, url string, headers http.Header, body, result interface{}) (RESTResponse, error) {
	buffer := new(bytes.Buffer)
	if err := json.NewEncoder(buffer).Encode(body); err != nil {
		return RESTResponse{}, errors.Trace(err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, buffer)
	if err != nil {
		return RESTResponse{}, errors.Annotate(err, "can not make new request")
	}

	// Compose the request headers.
	req.Header = make(http.Header)
	req.Header.Set("Accept", JSON)
	req.Header.Set("Content-Type", JSON)
	req.Header = c.composeHeaders(req.Header)

	// Add any headers specific to this request (in sorted order).
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return RESTResponse{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Parse the response.
	if err := httprequest.UnmarshalJSONResponse(resp, result); err != nil {
		return RESTResponse{}, errors.Annotate(err, "platform client post")
	}
	return RESTResponse{
		StatusCode: resp.StatusCode,
	}, nil
}

// composeHeaders creates a new set of headers from scratch.
func (c *HTTPRESTClient) composeHeaders(headers http.Header) http.Header {
	result := make(http.Header)
	// Consume the new headers.
	for k, vs := range headers {
		for _, v := range vs {
			result.Add(k, v)
		}
	}
	// Add the client's headers as well.
	for k, vs := range c.headers {
		for _, v := range vs {
			result.Add(k, v)
		}
	}
	return result
}

// trimBaseURL normalises a configured server URL for path composition.
func trimBaseURL(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
