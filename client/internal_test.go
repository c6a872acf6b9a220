package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNext(t *testing.T) {
	base := "https://example.com/api/"
	assert.Equal(t, "", resolveNext(base, ""))
	assert.Equal(t, "https://a/b", resolveNext(base, "https://a/b"))
	assert.Equal(t, "https://example.com/next?p=2", resolveNext(base, "/next?p=2"))
	assert.Equal(t, "https://example.com/api/posts/?cursor=x", resolveNext(base, "posts/?cursor=x"))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://h/api/posts/", joinURL("http://h/api", "/posts/"))
	assert.Equal(t, "http://h/api/posts/", joinURL("http://h/api/", "posts/"))
	assert.Equal(t, "http://other/x", joinURL("http://h/api", "http://other/x"))
}

func TestRateLimiter_NilAndDisabled(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))

	disabled := NewRateLimiter(0, 0)
	assert.NoError(t, disabled.Wait(context.Background()))
}

func TestRateLimiter_BlocksPastBurst(t *testing.T) {
	l := NewRateLimiter(1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx), "second call inside one second should not fit the deadline")
}

func TestRateLimiter_SetLimitUpdatesInPlace(t *testing.T) {
	l := NewRateLimiter(1, 1)
	l.SetLimit(1000, 10)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	l.SetLimit(-1, 0)
	assert.Nil(t, l.lim)
}
