package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/db"
	"github.com/rs/zerolog/log"
)

// Cache persists the last loaded feed window so it can be shown offline and
// mutated by one-shot commands.
type Cache struct {
	repo db.PostRepository
}

func NewCache(repo db.PostRepository) *Cache {
	return &Cache{repo: repo}
}

// Save replaces the cached window with posts, in order.
func (c *Cache) Save(ctx context.Context, posts []client.Post) error {
	rows := make([]db.CachedPost, 0, len(posts))
	for _, p := range posts {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode post %s: %w", p.ID, err)
		}
		rows = append(rows, db.CachedPost{ID: p.ID, Payload: string(raw)})
	}
	return c.repo.ReplaceAll(ctx, rows)
}

// Load returns the cached window. Rows that no longer decode are skipped.
func (c *Cache) Load(ctx context.Context) ([]client.Post, error) {
	rows, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	posts := make([]client.Post, 0, len(rows))
	for _, row := range rows {
		var p client.Post
		if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
			log.Warn().Err(err).Str("id", row.ID).Msg("Skipping corrupt cached post")
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Get returns a cached post, or false when it is not cached.
func (c *Cache) Get(ctx context.Context, id string) (client.Post, bool, error) {
	row, err := c.repo.Get(ctx, id)
	if err != nil || row == nil {
		return client.Post{}, false, err
	}
	var p client.Post
	if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
		return client.Post{}, false, err
	}
	return p, true, nil
}

// Put stores p, keeping its position if it is already cached.
func (c *Cache) Put(ctx context.Context, p client.Post) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.repo.Put(ctx, db.CachedPost{ID: p.ID, Payload: string(raw)})
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	return c.repo.Delete(ctx, id)
}

// Restore fills acc from the cache. The cursor is not cached, so the restored
// list is marked as complete.
func (c *Cache) Restore(ctx context.Context, acc *Accumulator) error {
	posts, err := c.Load(ctx)
	if err != nil {
		return err
	}
	acc.Reset(client.FeedPage{Items: posts})
	return nil
}
