package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habedi/microfeed/pkg/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Service coordinates the session lifecycle: sign-in, refresh, sign-out.
type Service struct {
	Store         *Store
	Refresher     TokenRefresher
	Authenticator Authenticator

	group singleflight.Group
	now   func() time.Time
}

// NewService is the constructor for the auth service.
func NewService(store *Store, refresher TokenRefresher, authenticator Authenticator) *Service {
	return &Service{
		Store:         store,
		Refresher:     refresher,
		Authenticator: authenticator,
		now:           time.Now,
	}
}

// CurrentAccessToken returns the stored access token, or "" when it is absent
// or is a JWT that has already expired.
func (s *Service) CurrentAccessToken(ctx context.Context) string {
	token := s.Store.Get(ctx, AccessToken)
	if token == "" {
		return ""
	}
	if accessTokenExpired(token, s.clock()) {
		log.Debug().Msg("Stored access token has expired")
		return ""
	}
	return token
}

// Refresh obtains a new access token with the stored refresh token.
// A failed refresh clears the store and is never retried. Concurrent callers
// share one in-flight refresh.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	v, err, shared := s.group.Do("refresh", func() (interface{}, error) {
		return s.refresh(ctx)
	})
	if shared {
		log.Debug().Msg("Joined an in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Service) refresh(ctx context.Context) (string, error) {
	refreshToken := s.Store.Get(ctx, RefreshToken)
	if refreshToken == "" {
		metrics.Refreshes.WithLabelValues(metrics.OutcomeNoRefreshToken).Inc()
		return "", &AuthFailure{Reason: ReasonNoRefreshToken}
	}
	if s.Refresher == nil {
		return "", &AuthFailure{Reason: ReasonRefreshRejected, Err: errors.New("no token refresher configured")}
	}

	log.Info().Msg("Refreshing access token")
	access, rotated, err := s.Refresher.PerformTokenRefresh(ctx, refreshToken)
	if err == nil && access == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Warn().Err(err).Msg("Token refresh rejected, clearing session")
		_ = s.Store.Clear(ctx)
		return "", &AuthFailure{Reason: ReasonRefreshRejected, Err: err}
	}

	if err := s.Store.Save(ctx, access, rotated); err != nil {
		log.Warn().Err(err).Msg("Refreshed token could not be persisted")
	}
	metrics.Refreshes.WithLabelValues(metrics.OutcomeOK).Inc()
	log.Info().Bool("rotated", rotated != "").Msg("Token refreshed and saved successfully.")
	return access, nil
}

// SignIn exchanges credentials for a token pair and persists the new session.
func (s *Service) SignIn(ctx context.Context, username, password string) (Session, error) {
	if s.Authenticator == nil {
		return Session{}, errors.New("no authenticator configured")
	}
	pair, err := s.Authenticator.ObtainTokens(ctx, username, password)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign in: %w", err)
	}
	if pair.Access == "" {
		return Session{}, errors.New("sign-in response carried no access token")
	}
	sess := Session{AccessToken: pair.Access, RefreshToken: pair.Refresh, User: pair.User}
	if err := s.Store.SaveSession(ctx, sess); err != nil {
		return sess, fmt.Errorf("failed to save session: %w", err)
	}
	log.Info().Str("username", username).Msg("Signed in")
	return sess, nil
}

// SignOut destroys the session.
func (s *Service) SignOut(ctx context.Context) error {
	return s.Store.Clear(ctx)
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
