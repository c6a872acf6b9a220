package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/habedi/microfeed/auth"
	"github.com/rs/zerolog/log"
)

// Me returns the identity of the signed-in user.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var u auth.User
	if err := c.Request(ctx, http.MethodGet, "me/", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SignIn signs in through the session coordinator and makes sure the stored
// session carries a user, asking the API when the token response had none.
func (c *Client) SignIn(ctx context.Context, username, password string) (auth.Session, error) {
	sess, err := c.auth.SignIn(ctx, username, password)
	if err != nil {
		return sess, err
	}
	if sess.User != nil {
		return sess, nil
	}
	user, err := c.Me(ctx)
	if err != nil {
		return sess, fmt.Errorf("failed to resolve signed-in user: %w", err)
	}
	if err := c.auth.Store.SetUser(ctx, user); err != nil {
		log.Warn().Err(err).Msg("Failed to store user record")
	}
	sess.User = user
	return sess, nil
}

// FetchFeed fetches one feed page. An empty cursor fetches the first page.
// A cursor may also be a next-page link, which is followed as-is.
func (c *Client) FetchFeed(ctx context.Context, cursor string) (FeedPage, error) {
	endpoint := "posts/"
	switch {
	case cursor == "":
	case strings.Contains(cursor, "://") || strings.HasPrefix(cursor, "/"):
		endpoint = resolveNext(strings.TrimRight(c.baseURL, "/")+"/", cursor)
	default:
		endpoint = "posts/?cursor=" + url.QueryEscape(cursor)
	}
	var page FeedPage
	if err := c.Request(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return FeedPage{}, err
	}
	return page, nil
}

// FetchProfile returns a user's profile with their posts.
func (c *Client) FetchProfile(ctx context.Context, username string) (Profile, error) {
	var p Profile
	if err := c.Request(ctx, http.MethodGet, "users/"+url.PathEscape(username)+"/", nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (Post, error) {
	var p Post
	err := c.Request(ctx, http.MethodGet, postPath(id), nil, &p)
	return p, err
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	var p Post
	err := c.Request(ctx, http.MethodPost, "posts/", in, &p)
	return p, err
}

// EditPost partially updates a post the caller owns.
func (c *Client) EditPost(ctx context.Context, id string, in PostInput) (Post, error) {
	var p Post
	err := c.Request(ctx, http.MethodPatch, postPath(id), in, &p)
	return p, err
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.Request(ctx, http.MethodDelete, postPath(id), nil, nil)
}

// ToggleLike flips the viewer's like on a post. Each POST to the like route
// flips the stored state; the response carries the new state and count. A
// uniqueness conflict counts as success with an empty result.
func (c *Client) ToggleLike(ctx context.Context, id string) (LikeResult, error) {
	var res LikeResult
	err := c.Request(ctx, http.MethodPost, postPath(id)+"like/", nil, &res)
	if IsDuplicate(err) {
		log.Debug().Str("post", id).Msg("Like toggle hit a duplicate row")
		return LikeResult{}, nil
	}
	return res, err
}

// ToggleFollow flips whether the viewer follows userID, the same way
// ToggleLike does for posts.
func (c *Client) ToggleFollow(ctx context.Context, userID string) (FollowResult, error) {
	var res FollowResult
	err := c.Request(ctx, http.MethodPost, "users/"+url.PathEscape(userID)+"/follow/", nil, &res)
	if IsDuplicate(err) {
		log.Debug().Str("user", userID).Msg("Follow toggle hit a duplicate row")
		return FollowResult{}, nil
	}
	return res, err
}

// IsDuplicate reports whether err is a uniqueness conflict from an
// idempotent toggle: a 409, or a 400 whose message names a duplicate key.
func IsDuplicate(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusConflict {
		return true
	}
	return apiErr.Status == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "duplicate key")
}

func postPath(id string) string {
	return "posts/" + url.PathEscape(id) + "/"
}
