package feed

import (
	"net/url"
	"strings"
)

// canonicalCursor normalizes a cursor so that equivalent next links compare
// equal. Opaque cursors are returned unchanged.
func canonicalCursor(c string) string {
	if !strings.Contains(c, "://") && !strings.HasPrefix(c, "/") {
		return c
	}
	parsed, err := url.Parse(c)
	if err != nil {
		return c
	}
	if parsed.Path == "/" {
		parsed.Path = ""
	} else {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	q := parsed.Query()
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// cursorSet remembers which cursors have been requested.
type cursorSet map[string]struct{}

// add records c and reports whether it was new.
func (s cursorSet) add(c string) bool {
	key := canonicalCursor(c)
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}
