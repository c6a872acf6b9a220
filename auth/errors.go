package auth

import (
	"errors"
	"fmt"
)

// Reason explains why a session can no longer be used.
type Reason string

const (
	ReasonNoRefreshToken       Reason = "no_refresh_token"
	ReasonRefreshRejected      Reason = "refresh_rejected"
	ReasonRejectedAfterRefresh Reason = "rejected_after_refresh"
)

// ErrAuthFailure matches every *AuthFailure with errors.Is.
var ErrAuthFailure = errors.New("must re-authenticate")

// AuthFailure is terminal for the current session: the user has to sign in again.
type AuthFailure struct {
	Reason Reason
	Err    error // optional underlying error
}

func (e *AuthFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failure (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failure (%s)", e.Reason)
}

func (e *AuthFailure) Unwrap() error { return e.Err }

func (e *AuthFailure) Is(target error) bool { return target == ErrAuthFailure }

// IsAuthFailure reports whether err carries an *AuthFailure anywhere in its chain.
func IsAuthFailure(err error) bool {
	var af *AuthFailure
	return errors.As(err, &af)
}
