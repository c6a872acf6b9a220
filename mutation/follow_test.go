package mutation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFollowee struct {
	calls  []string
	result client.FollowResult
	err    error
}

func (f *fakeFollowee) ToggleFollow(_ context.Context, id string) (client.FollowResult, error) {
	f.calls = append(f.calls, "toggle "+id)
	return f.result, f.err
}

func TestFollows_Toggle(t *testing.T) {
	api := &fakeFollowee{}
	follows := mutation.NewFollows(api, nil)

	got, err := follows.Toggle(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, got.Following)

	got, err = follows.Toggle(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, got.Following)
	assert.Equal(t, []string{"toggle 42", "toggle 42"}, api.calls)
}

func TestFollows_ServerAnswerWins(t *testing.T) {
	api := &fakeFollowee{result: client.FollowResult{IsFollowing: boolPtr(false)}}
	follows := mutation.NewFollows(api, nil)

	got, err := follows.Toggle(context.Background(), "42")

	require.NoError(t, err)
	assert.False(t, got.Following)
}

func TestFollows_SetAgainstToggleServer(t *testing.T) {
	srv := newToggleServer()
	srv.following["7"] = true
	follows := mutation.NewFollows(srv, nil)
	follows.Seed("7", true)
	ctx := context.Background()

	got, err := follows.Set(ctx, "7", true)
	require.NoError(t, err)
	assert.True(t, got.Following)
	assert.Zero(t, srv.calls)

	got, err = follows.Set(ctx, "7", false)
	require.NoError(t, err)
	assert.False(t, got.Following)
	assert.False(t, srv.following["7"])

	// An unknown user the server already follows takes two toggles.
	srv.following["8"] = true
	got, err = follows.Set(ctx, "8", true)
	require.NoError(t, err)
	assert.True(t, got.Following)
	assert.True(t, srv.following["8"])
	assert.Equal(t, 3, srv.calls)
}

func TestFollows_SetConflict(t *testing.T) {
	api := &fakeFollowee{result: client.FollowResult{IsFollowing: boolPtr(false)}}
	follows := mutation.NewFollows(api, nil)

	_, err := follows.Set(context.Background(), "42", true)

	assert.ErrorIs(t, err, mutation.ErrConflict)
	assert.False(t, follows.State("42").Following)
	assert.Len(t, api.calls, 2)
}

func TestFollows_RollbackOnFailure(t *testing.T) {
	api := &fakeFollowee{err: errors.New("You cannot follow yourself.")}
	var states []mutation.State
	follows := mutation.NewFollows(api, func(_ string, st mutation.State, _ mutation.FollowState) {
		states = append(states, st)
	})
	follows.Seed("1", false)

	_, err := follows.Toggle(context.Background(), "1")

	require.Error(t, err)
	assert.False(t, follows.State("1").Following)
	assert.Equal(t, []mutation.State{mutation.Pending, mutation.RolledBack}, states)
}
