package auth

import "context"

// TokenRefresher defines the contract for any component that can exchange a
// refresh token for a new access token. newRefreshToken is empty unless the
// server rotated the refresh token.
type TokenRefresher interface {
	PerformTokenRefresh(ctx context.Context, refreshToken string) (accessToken string, newRefreshToken string, err error)
}

// Authenticator defines the contract for the password sign-in endpoint.
type Authenticator interface {
	ObtainTokens(ctx context.Context, username, password string) (TokenPair, error)
}

// TokenPair is what a successful sign-in returns.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user,omitempty"`
}
