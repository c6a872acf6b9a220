// Package feed merges cursor-delimited pages into one deduplicated,
// order-preserving list of posts.
package feed

import (
	"sync"

	"github.com/habedi/microfeed/client"
)

// Result is the outcome of merging a page: the merged items and the cursor
// for the next page. An empty Cursor means the end of the feed.
type Result struct {
	Items  []client.Post
	Cursor string
}

// AppendPage appends the posts of page that are not already in existing,
// keeping arrival order, and carries page.NextCursor forward.
// existing is never modified.
func AppendPage(existing []client.Post, page client.FeedPage) Result {
	seen := make(map[string]struct{}, len(existing)+len(page.Items))
	merged := make([]client.Post, 0, len(existing)+len(page.Items))
	for _, p := range existing {
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range page.Items {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
	}
	return Result{Items: merged, Cursor: page.NextCursor}
}

// Accumulator holds the accumulated feed. It is safe for concurrent use.
type Accumulator struct {
	mu     sync.RWMutex
	items  []client.Post
	index  map[string]int
	cursor string
	loaded bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{index: map[string]int{}}
}

// Reset replaces the list with the first page.
func (a *Accumulator) Reset(page client.FeedPage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := AppendPage(nil, page)
	a.set(res.Items)
	a.cursor = res.Cursor
	a.loaded = true
}

// Append merges a subsequent page and returns how many posts were new.
func (a *Accumulator) Append(page client.FeedPage) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	before := len(a.items)
	res := AppendPage(a.items, page)
	a.set(res.Items)
	a.cursor = res.Cursor
	a.loaded = true
	return len(a.items) - before
}

// Prepend puts pushed posts at the front, newest first as given. Posts that
// are already present are skipped. The cursor is left untouched.
func (a *Accumulator) Prepend(posts ...client.Post) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	fresh := make([]client.Post, 0, len(posts))
	seen := map[string]struct{}{}
	for _, p := range posts {
		if _, ok := a.index[p.ID]; ok {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return 0
	}
	a.set(append(fresh, a.items...))
	return len(fresh)
}

// Get returns the post with id.
func (a *Accumulator) Get(id string) (client.Post, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.index[id]
	if !ok {
		return client.Post{}, false
	}
	return a.items[i], true
}

// Replace swaps the post with id for p, in place. p may carry a different id,
// as when a placeholder is swapped for the server's copy. It returns false
// when id is not present, or when p.ID already belongs to another entry.
func (a *Accumulator) Replace(id string, p client.Post) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if !ok {
		return false
	}
	if j, taken := a.index[p.ID]; taken && j != i {
		return false
	}
	delete(a.index, id)
	a.items[i] = p
	a.index[p.ID] = i
	return true
}

// Update applies fn to the post with id and stores the result.
func (a *Accumulator) Update(id string, fn func(client.Post) client.Post) (client.Post, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if !ok {
		return client.Post{}, false
	}
	next := fn(a.items[i])
	next.ID = id
	a.items[i] = next
	return next, true
}

// Remove deletes the post with id and returns it with its former position.
func (a *Accumulator) Remove(id string) (client.Post, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if !ok {
		return client.Post{}, -1, false
	}
	p := a.items[i]
	items := make([]client.Post, 0, len(a.items)-1)
	items = append(items, a.items[:i]...)
	items = append(items, a.items[i+1:]...)
	a.set(items)
	return p, i, true
}

// InsertAt puts p at position pos, clamped to the list bounds. A post that is
// already present is not inserted again.
func (a *Accumulator) InsertAt(pos int, p client.Post) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.index[p.ID]; ok {
		return false
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(a.items) {
		pos = len(a.items)
	}
	items := make([]client.Post, 0, len(a.items)+1)
	items = append(items, a.items[:pos]...)
	items = append(items, p)
	items = append(items, a.items[pos:]...)
	a.set(items)
	return true
}

// Items returns a copy of the accumulated posts.
func (a *Accumulator) Items() []client.Post {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]client.Post(nil), a.items...)
}

func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Cursor is the cursor of the next page, "" at the end of the feed.
func (a *Accumulator) Cursor() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cursor
}

// Done reports whether a page has been loaded and no further page exists.
func (a *Accumulator) Done() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded && a.cursor == ""
}

// set must be called with mu held.
func (a *Accumulator) set(items []client.Post) {
	a.items = items
	a.index = make(map[string]int, len(items))
	for i, p := range items {
		a.index[p.ID] = i
	}
}
