package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/habedi/microfeed/auth"
	"github.com/habedi/microfeed/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single round trip when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// Client is the authenticated request client. It attaches the session's
// access token to every call and refreshes it at most once per call.
type Client struct {
	baseURL string
	http    *http.Client
	auth    *auth.Service
	limiter *RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimiter paces every outbound call through l.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, svc *auth.Service, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		auth:    svc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Auth returns the session coordinator the client reads tokens from.
func (c *Client) Auth() *auth.Service { return c.auth }

// Request issues an authenticated call and decodes a JSON response into out
// (which may be nil). Errors are *APIError or *NetworkError.
//
// An absent access token is refreshed before the call. A 401 or 403 triggers
// exactly one refresh and one retry; a second rejection clears the session.
func (c *Client) Request(ctx context.Context, method, endpoint string, body, out any) error {
	token := c.auth.CurrentAccessToken(ctx)
	if token == "" {
		fresh, err := c.auth.Refresh(ctx)
		if err != nil {
			metrics.Requests.WithLabelValues(metrics.OutcomeAuthFailure).Inc()
			return &APIError{Status: http.StatusUnauthorized, Message: "no valid token", Err: err}
		}
		token = fresh
	}

	payload, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	target := joinURL(c.baseURL, endpoint)
	requestID := uuid.NewString()

	status, data, err := c.send(ctx, method, target, token, requestID, payload)
	if err != nil {
		return c.networkError(method, target, err)
	}

	if isAuthStatus(status) {
		log.Info().Int("status", status).Str("url", target).Msg("Request rejected, refreshing token")
		fresh, rerr := c.auth.Refresh(ctx)
		if rerr != nil {
			_ = c.auth.Store.Clear(ctx)
			metrics.Requests.WithLabelValues(metrics.OutcomeAuthFailure).Inc()
			return &APIError{Status: http.StatusUnauthorized, Message: "authentication failed", Err: rerr}
		}

		status, data, err = c.send(ctx, method, target, fresh, requestID, payload)
		if err != nil {
			return c.networkError(method, target, err)
		}
		if isAuthStatus(status) {
			log.Warn().Int("status", status).Str("url", target).Msg("Request rejected after refresh, clearing session")
			_ = c.auth.Store.Clear(ctx)
			metrics.Requests.WithLabelValues(metrics.OutcomeAuthFailure).Inc()
			return &APIError{
				Status:  status,
				Message: errorMessage(status, data),
				Err:     &auth.AuthFailure{Reason: auth.ReasonRejectedAfterRefresh},
			}
		}
	}

	if status < 200 || status >= 300 {
		metrics.Requests.WithLabelValues(metrics.OutcomeAPIError).Inc()
		apiErr := &APIError{Status: status, Message: errorMessage(status, data)}
		log.Debug().Int("status", status).Str("url", target).Str("message", apiErr.Message).Msg("API returned an error")
		return apiErr
	}

	metrics.Requests.WithLabelValues(metrics.OutcomeOK).Inc()
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Error().Err(err).Str("url", target).Msg("Failed to parse response JSON")
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, target, token, requestID string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	req, err := createRequest(ctx, method, target, token, requestID, payload)
	if err != nil {
		return 0, nil, err
	}
	return sendRequest(c.http, req)
}

func (c *Client) networkError(method, target string, err error) error {
	metrics.Requests.WithLabelValues(metrics.OutcomeNetworkError).Inc()
	return &NetworkError{Method: method, URL: target, Err: err}
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(body)
}
