// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient is the authenticated fetch helper used to talk to the thermolink backend.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

type Endpoint string

// StatusError is returned for non 2xx/3xx responses.
type StatusError struct {
	Method     string
	Endpoint   Endpoint
	StatusCode int
	// Message is the error or message field of the response body, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: error response code %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s %s: error response code %d", e.Method, e.Endpoint, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError

	return errors.As(err, &se) && se.StatusCode == code
}

type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client carries the backend base URL and the session token.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient creates a client for the given backend. The token is sent as the jwt cookie on every
// request when not empty.
func NewClient(apiURL string, token string, insecureTLS bool, log *zap.SugaredLogger) *Client {
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in for self signed development backends
		}
	}

	return &Client{
		apiURL: apiURL,
		token:  token,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   constants.RequestTimeout,
		},
		log: log,
	}
}

// HTTPClient exposes the underlying client, e.g. for request interception in tests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// URL returns the absolute URL of the endpoint.
func (c *Client) URL(endpoint Endpoint) string {
	return c.apiURL + strings.TrimPrefix(string(endpoint), "/")
}

func (c *Client) newRequest(ctx context.Context, method string, endpoint Endpoint, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.URL(endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: constants.JWTCookieName, Value: c.token})
	}

	return req, nil
}

// do sends the request and returns the body of a successful response.
func (c *Client) do(req *http.Request, endpoint Endpoint) (body []byte, statusCode int, responseErr error) {
	start := time.Now()

	response, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackendRequest(req.Method, string(endpoint), "0", time.Since(start))

		return nil, 0, enhanceConnectionError(err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			if responseErr != nil {
				c.log.Errorf("Error closing response body: %v", err)
			} else {
				responseErr = fmt.Errorf("error closing response body: %w", err)
			}
		}
	}()

	metrics.ObserveBackendRequest(req.Method, string(endpoint), strconv.Itoa(response.StatusCode), time.Since(start))

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, response.StatusCode, err
	}

	if response.StatusCode < 200 || response.StatusCode > 399 {
		statusErr := &StatusError{
			Method:     req.Method,
			Endpoint:   endpoint,
			StatusCode: response.StatusCode,
		}

		var apiErr apiErrorResponse
		if len(bodyBytes) != 0 && safejson.Unmarshal(bodyBytes, &apiErr) == nil {
			statusErr.Message = apiErr.Error
			if statusErr.Message == "" {
				statusErr.Message = apiErr.Message
			}
		}

		if response.StatusCode == http.StatusUnauthorized {
			c.log.Warnf("Backend rejected the session token for %s", endpoint)
		}

		return nil, response.StatusCode, statusErr
	}

	return bodyBytes, response.StatusCode, nil
}

// enhanceConnectionError adds detailed context to common connection errors
func enhanceConnectionError(err error) error {
	switch {
	case strings.Contains(err.Error(), "EOF"):
		return fmt.Errorf("connection closed unexpectedly before receiving response: %w", err)
	case strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded"):
		return fmt.Errorf("request timed out: %w", err)
	case strings.Contains(err.Error(), "connection refused"):
		return fmt.Errorf("connection refused: %w (backend down or incorrect URL)", err)
	}

	return fmt.Errorf("connection error: %w (no response received from server, status code 0)", err)
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, constants.RequestTimeout)
}

// GetRequest does a GET request to the given endpoint. An empty body yields a nil result.
func GetRequest[R any](ctx context.Context, c *Client, endpoint Endpoint, query url.Values) (result *R, responseErr error, statusCode int) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return nil, err, 0
	}

	bodyBytes, statusCode, err := c.do(req, endpoint)
	if err != nil {
		return nil, err, statusCode
	}

	if len(bodyBytes) == 0 {
		return nil, nil, statusCode
	}

	var typedResult R
	if err := safejson.Unmarshal(bodyBytes, &typedResult); err != nil {
		return nil, fmt.Errorf("failed to parse response of %s: %w", endpoint, err), statusCode
	}

	return &typedResult, nil, statusCode
}

// PostRequest does a POST request with data encoded as JSON. An empty body yields a nil result.
func PostRequest[R any, T any](ctx context.Context, c *Client, endpoint Endpoint, data *T) (result *R, responseErr error, statusCode int) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	body, err := safejson.Marshal(data)
	if err != nil {
		return nil, err, 0
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err, 0
	}

	bodyBytes, statusCode, err := c.do(req, endpoint)
	if err != nil {
		return nil, err, statusCode
	}

	if len(bodyBytes) == 0 {
		return nil, nil, statusCode
	}

	var typedResult R
	if err := safejson.Unmarshal(bodyBytes, &typedResult); err != nil {
		return nil, fmt.Errorf("failed to parse response of %s: %w", endpoint, err), statusCode
	}

	return &typedResult, nil, statusCode
}
