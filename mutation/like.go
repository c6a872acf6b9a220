package mutation

import (
	"context"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/feed"
	"github.com/rs/zerolog/log"
)

// LikeState is the viewer's like state of one post.
type LikeState struct {
	Liked bool
	Count int
}

// Liker is the part of the API client the like toggle needs. Every call
// flips the server's like state.
type Liker interface {
	ToggleLike(ctx context.Context, postID string) (client.LikeResult, error)
}

// Likes toggles likes optimistically. When built with an Accumulator, every
// state change is written back into the matching post.
type Likes struct {
	api  Liker
	acc  *feed.Accumulator
	ctrl *Controller[LikeState]
}

// NewLikes returns a like toggle. acc may be nil; observer may be nil.
func NewLikes(api Liker, acc *feed.Accumulator, observer Observer[LikeState]) *Likes {
	l := &Likes{api: api, acc: acc}
	l.ctrl = NewController(func(id string, st State, v LikeState) {
		if l.acc != nil {
			l.acc.Update(id, func(p client.Post) client.Post {
				p.LikedByViewer = v.Liked
				p.LikeCount = v.Count
				return p
			})
		}
		if observer != nil {
			observer(id, st, v)
		}
	})
	return l
}

// Seed records the settled like state of posts.
func (l *Likes) Seed(posts ...client.Post) {
	for _, p := range posts {
		l.ctrl.Set(p.ID, LikeState{Liked: p.LikedByViewer, Count: p.LikeCount})
	}
}

// State returns the current local like state of postID.
func (l *Likes) State(postID string) LikeState {
	v, _, _ := l.ctrl.Get(postID)
	return v
}

// Pending reports whether a like change for postID is in flight.
func (l *Likes) Pending(postID string) bool { return l.ctrl.Pending(postID) }

// Toggle flips the like state of postID. The server's answer wins.
func (l *Likes) Toggle(ctx context.Context, postID string) (LikeState, error) {
	remote := func(ctx context.Context, next LikeState) (LikeState, error) {
		res, err := l.api.ToggleLike(ctx, postID)
		if err != nil {
			return next, err
		}
		return reconcileLike(next, res), nil
	}
	return l.ctrl.Apply(ctx, postID, flipLike, remote)
}

// Set moves postID to liked or not liked. A known state that already matches
// makes no call. The server only toggles, so when it answers with the
// opposite state the local copy was stale and one more toggle is sent; if the
// server still disagrees, Set fails with ErrConflict and rolls back.
func (l *Likes) Set(ctx context.Context, postID string, liked bool) (LikeState, error) {
	cur, st, known := l.ctrl.Get(postID)
	if known && st != Pending && cur.Liked == liked {
		return cur, nil
	}

	var skip bool
	optimistic := func(cur LikeState) LikeState {
		if cur.Liked == liked {
			skip = known
			return cur
		}
		return flipLike(cur)
	}
	remote := func(ctx context.Context, next LikeState) (LikeState, error) {
		if skip {
			return next, nil
		}
		res, err := l.api.ToggleLike(ctx, postID)
		if err == nil && res.IsLiked != nil && *res.IsLiked != liked {
			log.Debug().Str("post", postID).Bool("liked", liked).Msg("Like state was stale, toggling again")
			res, err = l.api.ToggleLike(ctx, postID)
			if err == nil && res.IsLiked != nil && *res.IsLiked != liked {
				err = ErrConflict
			}
		}
		if err != nil {
			return next, err
		}
		return reconcileLike(next, res), nil
	}
	return l.ctrl.Apply(ctx, postID, optimistic, remote)
}

func flipLike(cur LikeState) LikeState {
	next := LikeState{Liked: !cur.Liked, Count: cur.Count}
	if next.Liked {
		next.Count++
	} else if next.Count > 0 {
		next.Count--
	}
	return next
}

// reconcileLike lets fields the server returned win over the local guess.
func reconcileLike(local LikeState, res client.LikeResult) LikeState {
	if res.LikesCount != nil {
		local.Count = *res.LikesCount
	}
	if res.IsLiked != nil {
		local.Liked = *res.IsLiked
	}
	return local
}

// Close detaches the toggle; in-flight results are ignored.
func (l *Likes) Close() { l.ctrl.Close() }
