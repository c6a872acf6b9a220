package operations

import (
	"context"

	"github.com/habedi/microfeed/mutation"
	"github.com/habedi/microfeed/pkg/pool"
)

// LikeSetter moves a post to a like state. *mutation.Likes implements it.
type LikeSetter interface {
	Set(ctx context.Context, postID string, liked bool) (mutation.LikeState, error)
}

// FollowSetter moves a user to a follow state. *mutation.Follows implements it.
type FollowSetter interface {
	Set(ctx context.Context, userID string, following bool) (mutation.FollowState, error)
}

// SetLikes likes or unlikes every post in ids using up to workers concurrent
// requests. Results come back in the order of ids.
func SetLikes(ctx context.Context, likes LikeSetter, ids []string, liked bool, workers int, onDone func()) []pool.Result[string] {
	return pool.Collect(ctx, ids, workers, func(ctx context.Context, id string) error {
		_, err := likes.Set(ctx, id, liked)
		if onDone != nil {
			onDone()
		}
		return err
	})
}

// SetFollows follows or unfollows every user in ids.
func SetFollows(ctx context.Context, follows FollowSetter, ids []string, following bool, workers int, onDone func()) []pool.Result[string] {
	return pool.Collect(ctx, ids, workers, func(ctx context.Context, id string) error {
		_, err := follows.Set(ctx, id, following)
		if onDone != nil {
			onDone()
		}
		return err
	})
}

// Failed returns the results that carry an error.
func Failed[T any](results []pool.Result[T]) []pool.Result[T] {
	var out []pool.Result[T]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
