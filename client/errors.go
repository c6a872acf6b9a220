package client

import (
	"fmt"
	"net/http"
)

// APIError is a non-success HTTP response, normalized.
type APIError struct {
	Status  int
	Message string
	Err     error // set when the error also ends the session
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// SessionInvalidating reports whether the status means the credentials were refused.
func (e *APIError) SessionInvalidating() bool {
	return isAuthStatus(e.Status)
}

// NetworkError is a transport-level failure. It never clears the session.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
