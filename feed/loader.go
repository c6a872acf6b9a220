package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/habedi/microfeed/client"
	"github.com/rs/zerolog/log"
)

// ErrEndOfFeed is returned by Next when there is no further page.
var ErrEndOfFeed = errors.New("end of feed")

// ErrCursorLoop is returned by Next when the server hands back a cursor
// that was already consumed.
var ErrCursorLoop = errors.New("feed cursor repeated")

// Fetcher fetches one page; an empty cursor means the first page.
type Fetcher interface {
	FetchFeed(ctx context.Context, cursor string) (client.FeedPage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, cursor string) (client.FeedPage, error)

func (f FetcherFunc) FetchFeed(ctx context.Context, cursor string) (client.FeedPage, error) {
	return f(ctx, cursor)
}

// Loader drives page fetches into an Accumulator.
type Loader struct {
	fetcher Fetcher
	acc     *Accumulator

	mu   sync.Mutex
	seen cursorSet
}

func NewLoader(fetcher Fetcher, acc *Accumulator) *Loader {
	return &Loader{fetcher: fetcher, acc: acc, seen: cursorSet{}}
}

// Accumulator returns the list the loader fills.
func (l *Loader) Accumulator() *Accumulator { return l.acc }

// First fetches the first page and replaces the accumulated list with it.
// On error the list is left as it was.
func (l *Loader) First(ctx context.Context) error {
	page, err := l.fetcher.FetchFeed(ctx, "")
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.seen = cursorSet{}
	l.mu.Unlock()
	l.acc.Reset(page)
	log.Debug().Int("items", len(page.Items)).Str("next", page.NextCursor).Msg("Loaded first feed page")
	return nil
}

// Next fetches the page after the current cursor and appends it.
// It returns the number of new posts.
func (l *Loader) Next(ctx context.Context) (int, error) {
	cursor := l.acc.Cursor()
	if cursor == "" {
		return 0, ErrEndOfFeed
	}
	l.mu.Lock()
	fresh := l.seen.add(cursor)
	l.mu.Unlock()
	if !fresh {
		log.Warn().Str("cursor", cursor).Msg("Server returned a cursor that was already loaded")
		return 0, ErrCursorLoop
	}

	page, err := l.fetcher.FetchFeed(ctx, cursor)
	if err != nil {
		l.mu.Lock()
		delete(l.seen, canonicalCursor(cursor))
		l.mu.Unlock()
		return 0, err
	}
	added := l.acc.Append(page)
	log.Debug().Int("added", added).Str("next", page.NextCursor).Msg("Loaded feed page")
	return added, nil
}

// LoadPages loads the first page and then up to pages-1 more, stopping early
// at the end of the feed or on a repeated cursor.
func (l *Loader) LoadPages(ctx context.Context, pages int) error {
	if err := l.First(ctx); err != nil {
		return err
	}
	for i := 1; i < pages; i++ {
		if _, err := l.Next(ctx); err != nil {
			if errors.Is(err, ErrEndOfFeed) || errors.Is(err, ErrCursorLoop) {
				return nil
			}
			return err
		}
	}
	return nil
}
