package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/habedi/microfeed/auth"
	"github.com/rs/zerolog/log"
)

// TokenClient talks to the unauthenticated token endpoints.
// It implements auth.TokenRefresher and auth.Authenticator.
type TokenClient struct {
	baseURL string
	http    *http.Client
}

var (
	_ auth.TokenRefresher = (*TokenClient)(nil)
	_ auth.Authenticator  = (*TokenClient)(nil)
)

// NewTokenClient creates a TokenClient. A nil hc uses a client with DefaultTimeout.
func NewTokenClient(baseURL string, hc *http.Client) *TokenClient {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &TokenClient{baseURL: baseURL, http: hc}
}

// RegisterInput is the body of the sign-up call.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// PerformTokenRefresh exchanges a refresh token for a new access token.
func (t *TokenClient) PerformTokenRefresh(ctx context.Context, refreshToken string) (string, string, error) {
	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := t.post(ctx, "token/refresh/", map[string]string{"refresh": refreshToken}, &resp); err != nil {
		return "", "", err
	}
	return resp.Access, resp.Refresh, nil
}

// ObtainTokens signs in with a username and password.
func (t *TokenClient) ObtainTokens(ctx context.Context, username, password string) (auth.TokenPair, error) {
	var pair auth.TokenPair
	body := map[string]string{"username": username, "password": password}
	if err := t.post(ctx, "token/", body, &pair); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}

// Register creates a new account.
func (t *TokenClient) Register(ctx context.Context, in RegisterInput) error {
	return t.post(ctx, "register/", in, nil)
}

func (t *TokenClient) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	target := joinURL(t.baseURL, endpoint)
	req, err := createRequest(ctx, http.MethodPost, target, "", "", payload)
	if err != nil {
		return err
	}
	status, data, err := sendRequest(t.http, req)
	if err != nil {
		return &NetworkError{Method: http.MethodPost, URL: target, Err: err}
	}
	if status < 200 || status >= 300 {
		return &APIError{Status: status, Message: errorMessage(status, data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Error().Err(err).Str("url", target).Msg("Failed to parse token response")
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}
