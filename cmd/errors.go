package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/habedi/microfeed/auth"
	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/mutation"
	"github.com/habedi/microfeed/pkg/clierr"
)

// classify turns a command error into a *clierr.Error with a user-facing message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *clierr.Error
	if errors.As(err, &ce) {
		return ce
	}

	var apiErr *client.APIError
	var netErr *client.NetworkError
	switch {
	case auth.IsAuthFailure(err):
		return clierr.New(clierr.Auth, "Not signed in or the session expired. Run 'microfeed login'.", err)
	case errors.Is(err, mutation.ErrInFlight):
		return clierr.New(clierr.Conflict, "Another change to the same item is still in progress.", err)
	case errors.Is(err, mutation.ErrConflict):
		return clierr.New(clierr.Conflict, "The server kept a different state than requested; try again.", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return clierr.New(clierr.Network, "Operation cancelled or timed out.", err)
	case errors.As(err, &netErr):
		return clierr.New(clierr.Network, "Could not reach the server: "+netErr.Err.Error(), err)
	case errors.As(err, &apiErr):
		switch {
		case apiErr.SessionInvalidating():
			return clierr.New(clierr.Auth, apiErr.Message, err)
		case apiErr.Status == http.StatusNotFound:
			return clierr.New(clierr.NotFound, apiErr.Message, err)
		case apiErr.Status == http.StatusConflict:
			return clierr.New(clierr.Conflict, apiErr.Message, err)
		case apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity:
			return clierr.New(clierr.Validation, apiErr.Message, err)
		default:
			return clierr.New(clierr.API, apiErr.Message, err)
		}
	}
	return clierr.New(clierr.Internal, err.Error(), err)
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return clierr.New(clierr.Validation, err.Error(), err)
}
