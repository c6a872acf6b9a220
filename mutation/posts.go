package mutation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/feed"
	"github.com/habedi/microfeed/pkg/validation"
)

// PlaceholderPrefix marks ids of posts that exist only locally.
const PlaceholderPrefix = "local-"

// PostAPI is the part of the API client the post editor needs.
type PostAPI interface {
	CreatePost(ctx context.Context, in client.PostInput) (client.Post, error)
	EditPost(ctx context.Context, id string, in client.PostInput) (client.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// slot is a post and where it sits in the feed. Present is false once deleted.
type slot struct {
	Post    client.Post
	Present bool
	Pos     int
}

// PostEditor creates, edits and deletes posts in an Accumulator optimistically.
type PostEditor struct {
	api  PostAPI
	acc  *feed.Accumulator
	ctrl *Controller[slot]
}

func NewPostEditor(api PostAPI, acc *feed.Accumulator) *PostEditor {
	e := &PostEditor{api: api, acc: acc}
	e.ctrl = NewController(e.sync)
	return e
}

// sync mirrors a slot into the accumulator.
func (e *PostEditor) sync(key string, _ State, s slot) {
	if !s.Present {
		e.acc.Remove(key)
		return
	}
	if _, ok := e.acc.Get(key); ok {
		if !e.acc.Replace(key, s.Post) {
			// The server copy is already in the feed, pushed live.
			e.acc.Remove(key)
		}
		return
	}
	e.acc.InsertAt(s.Pos, s.Post)
}

// Create shows a placeholder post at the top of the feed and swaps it for the
// server's copy once created.
func (e *PostEditor) Create(ctx context.Context, author client.Author, in client.PostInput) (client.Post, error) {
	if err := validation.ValidatePostContent(in.Text); err != nil {
		return client.Post{}, err
	}
	key := PlaceholderPrefix + uuid.NewString()
	optimistic := func(slot) slot {
		return slot{Present: true, Pos: 0, Post: client.Post{
			ID:      key,
			Author:  author,
			Content: in.Text,
			Image:   in.Image,
		}}
	}
	remote := func(ctx context.Context, next slot) (slot, error) {
		created, err := e.api.CreatePost(ctx, in)
		if err != nil {
			return next, err
		}
		next.Post = created
		return next, nil
	}
	res, err := e.ctrl.Apply(ctx, key, optimistic, remote)
	e.ctrl.Forget(key)
	if err != nil {
		return client.Post{}, err
	}
	return res.Post, nil
}

// Edit changes a post's text locally, then on the server.
func (e *PostEditor) Edit(ctx context.Context, id string, in client.PostInput) (client.Post, error) {
	if err := validation.ValidatePostContent(in.Text); err != nil {
		return client.Post{}, err
	}
	if err := e.seed(id); err != nil {
		return client.Post{}, err
	}
	optimistic := func(cur slot) slot {
		cur.Post.Content = in.Text
		if in.Image != "" {
			cur.Post.Image = in.Image
		}
		return cur
	}
	remote := func(ctx context.Context, next slot) (slot, error) {
		updated, err := e.api.EditPost(ctx, id, in)
		if err != nil {
			return next, err
		}
		if updated.ID == "" {
			return next, nil
		}
		next.Post = updated
		return next, nil
	}
	res, err := e.ctrl.Apply(ctx, id, optimistic, remote)
	return res.Post, err
}

// Delete removes a post locally, then on the server. On failure it is put
// back where it was.
func (e *PostEditor) Delete(ctx context.Context, id string) error {
	if err := e.seed(id); err != nil {
		return err
	}
	optimistic := func(cur slot) slot {
		cur.Present = false
		return cur
	}
	remote := func(ctx context.Context, next slot) (slot, error) {
		return next, e.api.DeletePost(ctx, id)
	}
	_, err := e.ctrl.Apply(ctx, id, optimistic, remote)
	if err == nil {
		e.ctrl.Forget(id)
	}
	return err
}

// seed loads the settled state of id from the feed. A pending id is left
// alone so that Apply reports ErrInFlight.
func (e *PostEditor) seed(id string) error {
	if e.ctrl.Pending(id) {
		return nil
	}
	items := e.acc.Items()
	for i, p := range items {
		if p.ID == id {
			e.ctrl.Set(id, slot{Post: p, Present: true, Pos: i})
			return nil
		}
	}
	return fmt.Errorf("post %s is not in the loaded feed", id)
}

// Close detaches the editor; in-flight results are ignored.
func (e *PostEditor) Close() { e.ctrl.Close() }
