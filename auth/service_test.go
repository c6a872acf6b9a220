package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/habedi/microfeed/auth"
	"github.com/habedi/microfeed/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRefresher struct {
	calls       atomic.Int32
	access      string
	rotated     string
	errToReturn error
	delay       time.Duration
}

func (m *mockRefresher) PerformTokenRefresh(_ context.Context, _ string) (string, string, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.errToReturn != nil {
		return "", "", m.errToReturn
	}
	return m.access, m.rotated, nil
}

type mockAuthenticator struct {
	pair        auth.TokenPair
	errToReturn error
}

func (m *mockAuthenticator) ObtainTokens(_ context.Context, _, _ string) (auth.TokenPair, error) {
	return m.pair, m.errToReturn
}

func newService(t *testing.T, refresher auth.TokenRefresher) (*auth.Service, *auth.Store) {
	t.Helper()
	store := auth.NewStore(db.NewMemoryTokenRepository())
	return auth.NewService(store, refresher, nil), store
}

func TestRefresh_SavesNewAccessToken(t *testing.T) {
	ctx := context.Background()
	refresher := &mockRefresher{access: "A2"}
	svc, store := newService(t, refresher)
	require.NoError(t, store.Save(ctx, "A1", "R1"))

	token, err := svc.Refresh(ctx)

	require.NoError(t, err)
	assert.Equal(t, "A2", token)
	assert.Equal(t, "A2", store.Get(ctx, auth.AccessToken))
	assert.Equal(t, "R1", store.Get(ctx, auth.RefreshToken), "refresh token should be kept when not rotated")
}

func TestRefresh_StoresRotatedRefreshToken(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, &mockRefresher{access: "A2", rotated: "R2"})
	require.NoError(t, store.Save(ctx, "A1", "R1"))

	_, err := svc.Refresh(ctx)

	require.NoError(t, err)
	assert.Equal(t, "R2", store.Get(ctx, auth.RefreshToken))
}

func TestRefresh_WithoutRefreshToken(t *testing.T) {
	ctx := context.Background()
	refresher := &mockRefresher{access: "A2"}
	svc, _ := newService(t, refresher)

	_, err := svc.Refresh(ctx)

	var af *auth.AuthFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, auth.ReasonNoRefreshToken, af.Reason)
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
	assert.Zero(t, refresher.calls.Load(), "refresher must not be called without a refresh token")
}

func TestRefresh_RejectedClearsStore(t *testing.T) {
	ctx := context.Background()
	refresher := &mockRefresher{errToReturn: errors.New("token_not_valid")}
	svc, store := newService(t, refresher)
	require.NoError(t, store.SaveSession(ctx, auth.Session{
		AccessToken: "A1", RefreshToken: "R1", User: &auth.User{ID: "1", Username: "ada"},
	}))

	_, err := svc.Refresh(ctx)

	var af *auth.AuthFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, auth.ReasonRefreshRejected, af.Reason)
	assert.Equal(t, int32(1), refresher.calls.Load())
	sess := store.Session(ctx)
	assert.Empty(t, sess.AccessToken)
	assert.Empty(t, sess.RefreshToken)
	assert.Nil(t, sess.User)
}

func TestRefresh_EmptyAccessIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, &mockRefresher{access: ""})
	require.NoError(t, store.Save(ctx, "A1", "R1"))

	_, err := svc.Refresh(ctx)

	assert.True(t, auth.IsAuthFailure(err))
	assert.Empty(t, store.Get(ctx, auth.RefreshToken))
}

func TestRefresh_ConcurrentCallersShareOneRequest(t *testing.T) {
	ctx := context.Background()
	refresher := &mockRefresher{access: "A2", delay: 50 * time.Millisecond}
	svc, store := newService(t, refresher)
	require.NoError(t, store.Save(ctx, "A1", "R1"))

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := svc.Refresh(ctx)
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for _, tok := range results {
		assert.Equal(t, "A2", tok)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestCurrentAccessToken(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, &mockRefresher{})

	assert.Empty(t, svc.CurrentAccessToken(ctx))

	require.NoError(t, store.Save(ctx, "opaque-token", "R"))
	assert.Equal(t, "opaque-token", svc.CurrentAccessToken(ctx), "non-JWT tokens are passed through")

	valid := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, store.Save(ctx, valid, ""))
	assert.Equal(t, valid, svc.CurrentAccessToken(ctx))

	expired := signedToken(t, time.Now().Add(-time.Minute))
	require.NoError(t, store.Save(ctx, expired, ""))
	assert.Empty(t, svc.CurrentAccessToken(ctx))
	assert.Equal(t, expired, store.Get(ctx, auth.AccessToken), "expiry check must not mutate the store")
}

func TestSignInAndSignOut(t *testing.T) {
	ctx := context.Background()
	store := auth.NewStore(db.NewMemoryTokenRepository())
	authenticator := &mockAuthenticator{pair: auth.TokenPair{
		Access: "A", Refresh: "R", User: &auth.User{ID: "3", Username: "ada"},
	}}
	svc := auth.NewService(store, &mockRefresher{}, authenticator)

	sess, err := svc.SignIn(ctx, "ada", "secret")
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated())
	assert.True(t, store.Session(ctx).IsAuthenticated())

	require.NoError(t, svc.SignOut(ctx))
	assert.False(t, store.Session(ctx).IsAuthenticated())
}

func TestSignIn_FailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := auth.NewStore(db.NewMemoryTokenRepository())
	require.NoError(t, store.Save(ctx, "old", "old-refresh"))
	svc := auth.NewService(store, nil, &mockAuthenticator{errToReturn: errors.New("bad credentials")})

	_, err := svc.SignIn(ctx, "ada", "wrong")

	require.Error(t, err)
	assert.Equal(t, "old", store.Get(ctx, auth.AccessToken))
}
