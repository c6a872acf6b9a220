package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// createRequest builds a JSON request, attaching the bearer token when present.
func createRequest(ctx context.Context, method, urlStr, accessToken, requestID string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("url", urlStr).Msg("Failed to create request")
		return nil, err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}
	return req, nil
}

// sendRequest performs one round trip and returns the status and the full body.
// Only transport failures are errors; status handling belongs to the caller.
func sendRequest(hc *http.Client, req *http.Request) (int, []byte, error) {
	log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("Sending HTTP request")
	resp, err := hc.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return 0, nil, err
	}
	defer closeResponseBody(resp)

	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status", resp.StatusCode).Msg("HTTP request finished")
	return resp.StatusCode, body, nil
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read response body")
		return nil, err
	}
	return body, nil
}

func closeResponseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 1024*1024)
	_ = resp.Body.Close()
}

// errorMessage pulls a human-readable message out of an error body, falling
// back to the status text.
func errorMessage(status int, body []byte) string {
	var payload map[string]json.RawMessage
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if msg := messageText(payload[key]); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, " "))
	}
	return ""
}

// resolveNext resolves next against baseURL unless next is already absolute.
func resolveNext(baseURL, next string) string {
	if next == "" {
		return ""
	}
	if u, err := url.Parse(next); err == nil && u.Scheme != "" && u.Host != "" {
		return next
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return next
	}
	n, err := url.Parse(next)
	if err != nil {
		return next
	}
	return base.ResolveReference(n).String()
}

// joinURL appends endpoint to the base URL path. Absolute endpoints are used as-is.
func joinURL(baseURL, endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
