package mutation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/feed"
	"github.com/habedi/microfeed/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostAPI struct {
	created   client.Post
	edited    client.Post
	err       error
	onCall    func()
	deletedID string
}

func (f *fakePostAPI) CreatePost(_ context.Context, in client.PostInput) (client.Post, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.created, f.err
}

func (f *fakePostAPI) EditPost(_ context.Context, id string, in client.PostInput) (client.Post, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.edited, f.err
}

func (f *fakePostAPI) DeletePost(_ context.Context, id string) error {
	if f.onCall != nil {
		f.onCall()
	}
	f.deletedID = id
	return f.err
}

func feedOf(ids ...string) *feed.Accumulator {
	acc := feed.NewAccumulator()
	items := make([]client.Post, len(ids))
	for i, id := range ids {
		items[i] = client.Post{ID: id, Content: "text " + id}
	}
	acc.Reset(client.FeedPage{Items: items})
	return acc
}

func feedIDs(acc *feed.Accumulator) []string {
	var out []string
	for _, p := range acc.Items() {
		out = append(out, p.ID)
	}
	return out
}

func TestPostEditor_CreateShowsPlaceholderThenServerCopy(t *testing.T) {
	acc := feedOf("1")
	api := &fakePostAPI{created: client.Post{ID: "2", Content: "hi"}}
	api.onCall = func() {
		items := acc.Items()
		require.Len(t, items, 2)
		assert.True(t, strings.HasPrefix(items[0].ID, mutation.PlaceholderPrefix))
		assert.Equal(t, "hi", items[0].Content)
		assert.Equal(t, "ada", items[0].Author.Username)
	}
	editor := mutation.NewPostEditor(api, acc)

	got, err := editor.Create(context.Background(), client.Author{ID: "9", Username: "ada"}, client.PostInput{Text: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, []string{"2", "1"}, feedIDs(acc))
}

func TestPostEditor_CreateFailureRemovesPlaceholder(t *testing.T) {
	acc := feedOf("1")
	editor := mutation.NewPostEditor(&fakePostAPI{err: errors.New("nope")}, acc)

	_, err := editor.Create(context.Background(), client.Author{}, client.PostInput{Text: "hi"})

	require.Error(t, err)
	assert.Equal(t, []string{"1"}, feedIDs(acc))
}

func TestPostEditor_CreateWhenLivePushArrivedFirst(t *testing.T) {
	acc := feedOf("1")
	api := &fakePostAPI{created: client.Post{ID: "2", Content: "hi"}}
	api.onCall = func() { acc.Prepend(client.Post{ID: "2", Content: "hi"}) }
	editor := mutation.NewPostEditor(api, acc)

	_, err := editor.Create(context.Background(), client.Author{}, client.PostInput{Text: "hi"})

	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, feedIDs(acc))
}

func TestPostEditor_CreateValidatesContent(t *testing.T) {
	acc := feedOf()
	editor := mutation.NewPostEditor(&fakePostAPI{}, acc)

	_, err := editor.Create(context.Background(), client.Author{}, client.PostInput{Text: strings.Repeat("x", 1001)})

	require.Error(t, err)
	assert.Empty(t, feedIDs(acc))
}

func TestPostEditor_EditReconcilesAndRollsBack(t *testing.T) {
	acc := feedOf("1", "2")
	api := &fakePostAPI{edited: client.Post{ID: "2", Content: "server says"}}
	editor := mutation.NewPostEditor(api, acc)

	got, err := editor.Edit(context.Background(), "2", client.PostInput{Text: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "server says", got.Content)
	p, _ := acc.Get("2")
	assert.Equal(t, "server says", p.Content)

	api.err = errors.New("forbidden")
	api.onCall = func() {
		p, _ := acc.Get("2")
		assert.Equal(t, "again", p.Content, "optimistic text is visible while pending")
	}
	_, err = editor.Edit(context.Background(), "2", client.PostInput{Text: "again"})
	require.Error(t, err)
	p, _ = acc.Get("2")
	assert.Equal(t, "server says", p.Content)
	assert.Equal(t, []string{"1", "2"}, feedIDs(acc))
}

func TestPostEditor_DeleteRollbackRestoresPosition(t *testing.T) {
	acc := feedOf("1", "2", "3")
	api := &fakePostAPI{err: errors.New("server down")}
	api.onCall = func() {
		assert.Equal(t, []string{"1", "3"}, feedIDs(acc))
	}
	editor := mutation.NewPostEditor(api, acc)

	err := editor.Delete(context.Background(), "2")

	require.Error(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, feedIDs(acc))
	p, _ := acc.Get("2")
	assert.Equal(t, "text 2", p.Content)
}

func TestPostEditor_Delete(t *testing.T) {
	acc := feedOf("1", "2")
	api := &fakePostAPI{}
	editor := mutation.NewPostEditor(api, acc)

	require.NoError(t, editor.Delete(context.Background(), "1"))

	assert.Equal(t, "1", api.deletedID)
	assert.Equal(t, []string{"2"}, feedIDs(acc))
}

func TestPostEditor_UnknownPost(t *testing.T) {
	editor := mutation.NewPostEditor(&fakePostAPI{}, feedOf("1"))
	assert.Error(t, editor.Delete(context.Background(), "404"))
	_, err := editor.Edit(context.Background(), "404", client.PostInput{Text: "x"})
	assert.Error(t, err)
}
