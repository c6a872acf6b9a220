package client

import (
	"bytes"
	"encoding/json"
	"net/url"
	"time"

	"github.com/habedi/microfeed/auth"
)

// Author is the public projection of a post's author.
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Post is the client-side view of a post. The server owns it; the client
// holds a read-through copy that is mutated optimistically.
type Post struct {
	ID            string    `json:"id"`
	Author        Author    `json:"author"`
	Content       string    `json:"text"`
	Image         string    `json:"image,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LikeCount     int       `json:"likes_count"`
	LikedByViewer bool      `json:"is_liked"`
}

// UnmarshalJSON accepts both backend shapes: the REST serializer
// (text, nested author, is_liked) and the RPC projection (content,
// author_id/author_username, liked_by_me).
func (p *Post) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID             json.RawMessage `json:"id"`
		Author         json.RawMessage `json:"author"`
		AuthorID       json.RawMessage `json:"author_id"`
		AuthorUsername *string         `json:"author_username"`
		AuthorDisplay  *string         `json:"author_display_name"`
		Text           *string         `json:"text"`
		Content        *string         `json:"content"`
		Image          *string         `json:"image"`
		CreatedAt      *time.Time      `json:"created_at"`
		LikesCount     *int            `json:"likes_count"`
		IsLiked        *bool           `json:"is_liked"`
		LikedByMe      *bool           `json:"liked_by_me"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Post{ID: auth.ParseID(aux.ID)}
	if len(aux.Author) > 0 && !bytes.Equal(aux.Author, []byte("null")) {
		var a struct {
			ID          json.RawMessage `json:"id"`
			Username    string          `json:"username"`
			DisplayName string          `json:"display_name"`
		}
		if err := json.Unmarshal(aux.Author, &a); err != nil {
			// Some serializers render the author as a bare id.
			p.Author.ID = auth.ParseID(aux.Author)
		} else {
			p.Author = Author{ID: auth.ParseID(a.ID), Username: a.Username, DisplayName: a.DisplayName}
		}
	}
	if p.Author.ID == "" {
		p.Author.ID = auth.ParseID(aux.AuthorID)
	}
	if aux.AuthorUsername != nil && p.Author.Username == "" {
		p.Author.Username = *aux.AuthorUsername
	}
	if aux.AuthorDisplay != nil && p.Author.DisplayName == "" {
		p.Author.DisplayName = *aux.AuthorDisplay
	}
	switch {
	case aux.Text != nil:
		p.Content = *aux.Text
	case aux.Content != nil:
		p.Content = *aux.Content
	}
	if aux.Image != nil {
		p.Image = *aux.Image
	}
	if aux.CreatedAt != nil {
		p.CreatedAt = *aux.CreatedAt
	}
	if aux.LikesCount != nil {
		p.LikeCount = *aux.LikesCount
	}
	switch {
	case aux.IsLiked != nil:
		p.LikedByViewer = *aux.IsLiked
	case aux.LikedByMe != nil:
		p.LikedByViewer = *aux.LikedByMe
	}
	return nil
}

// FeedPage is one cursor-delimited page of posts. An empty NextCursor means
// the end of the feed.
type FeedPage struct {
	Items      []Post `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// UnmarshalJSON accepts {items, nextCursor} as well as the REST cursor
// pagination shape {results, next}, where next is a URL carrying the cursor.
func (fp *FeedPage) UnmarshalJSON(data []byte) error {
	var aux struct {
		Items           []Post  `json:"items"`
		NextCursor      *string `json:"nextCursor"`
		NextCursorSnake *string `json:"next_cursor"`
		Results         []Post  `json:"results"`
		Next            *string `json:"next"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*fp = FeedPage{Items: aux.Items}
	if fp.Items == nil {
		fp.Items = aux.Results
	}
	switch {
	case aux.NextCursor != nil:
		fp.NextCursor = *aux.NextCursor
	case aux.NextCursorSnake != nil:
		fp.NextCursor = *aux.NextCursorSnake
	case aux.Next != nil:
		fp.NextCursor = CursorFromNext(*aux.Next)
	}
	return nil
}

// CursorFromNext extracts the cursor query parameter from a next-page link.
// Links without one are returned unchanged and fetched as-is.
func CursorFromNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return next
	}
	if c := u.Query().Get("cursor"); c != "" {
		return c
	}
	return next
}

// LikeResult is what the like endpoints return. Fields are nil when the
// server omitted them.
type LikeResult struct {
	LikesCount *int  `json:"likes_count,omitempty"`
	IsLiked    *bool `json:"is_liked,omitempty"`
}

// FollowResult is what the follow endpoints return.
type FollowResult struct {
	IsFollowing *bool  `json:"is_following,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Profile is a user's public page: identity, follow state and their posts.
type Profile struct {
	User        ProfileUser `json:"user"`
	IsFollowing bool        `json:"is_following"`
	Posts       []Post      `json:"posts"`
}

// ProfileUser is the identity part of a Profile.
type ProfileUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u *ProfileUser) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.ID = auth.ParseID(aux.ID)
	u.Username = aux.Username
	return nil
}

// PostInput is the body of create and edit calls.
type PostInput struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}
