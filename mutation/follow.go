package mutation

import (
	"context"

	"github.com/habedi/microfeed/client"
	"github.com/rs/zerolog/log"
)

// FollowState is whether the viewer follows a user.
type FollowState struct {
	Following bool
}

// Followee is the part of the API client the follow toggle needs. Every call
// flips the server's follow state.
type Followee interface {
	ToggleFollow(ctx context.Context, userID string) (client.FollowResult, error)
}

// Follows toggles follow state optimistically.
type Follows struct {
	api  Followee
	ctrl *Controller[FollowState]
}

func NewFollows(api Followee, observer Observer[FollowState]) *Follows {
	return &Follows{api: api, ctrl: NewController(observer)}
}

// Seed records the settled follow state of userID.
func (f *Follows) Seed(userID string, following bool) {
	f.ctrl.Set(userID, FollowState{Following: following})
}

func (f *Follows) State(userID string) FollowState {
	v, _, _ := f.ctrl.Get(userID)
	return v
}

func (f *Follows) Toggle(ctx context.Context, userID string) (FollowState, error) {
	optimistic := func(cur FollowState) FollowState {
		return FollowState{Following: !cur.Following}
	}
	remote := func(ctx context.Context, next FollowState) (FollowState, error) {
		res, err := f.api.ToggleFollow(ctx, userID)
		if err != nil {
			return next, err
		}
		return followAnswer(next, res), nil
	}
	return f.ctrl.Apply(ctx, userID, optimistic, remote)
}

// Set follows or unfollows userID, with the same stale-state handling as
// Likes.Set.
func (f *Follows) Set(ctx context.Context, userID string, following bool) (FollowState, error) {
	cur, st, known := f.ctrl.Get(userID)
	if known && st != Pending && cur.Following == following {
		return cur, nil
	}

	var skip bool
	optimistic := func(cur FollowState) FollowState {
		skip = known && cur.Following == following
		return FollowState{Following: following}
	}
	remote := func(ctx context.Context, next FollowState) (FollowState, error) {
		if skip {
			return next, nil
		}
		res, err := f.api.ToggleFollow(ctx, userID)
		if err == nil && res.IsFollowing != nil && *res.IsFollowing != following {
			log.Debug().Str("user", userID).Bool("following", following).Msg("Follow state was stale, toggling again")
			res, err = f.api.ToggleFollow(ctx, userID)
			if err == nil && res.IsFollowing != nil && *res.IsFollowing != following {
				err = ErrConflict
			}
		}
		if err != nil {
			return next, err
		}
		return followAnswer(next, res), nil
	}
	return f.ctrl.Apply(ctx, userID, optimistic, remote)
}

func followAnswer(local FollowState, res client.FollowResult) FollowState {
	if res.IsFollowing != nil {
		local.Following = *res.IsFollowing
	}
	return local
}

func (f *Follows) Close() { f.ctrl.Close() }
