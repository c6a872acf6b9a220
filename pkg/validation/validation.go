package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MinWorkers = 1
	MaxWorkers = 20

	// MaxPostLength is the longest post the backend accepts, in characters.
	MaxPostLength = 1000
)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

func ValidatePageCount(pages int) error {
	if pages < 1 {
		return fmt.Errorf("page count must be at least 1, got %d", pages)
	}
	return nil
}

// ValidatePostContent checks that a post has text and fits the length limit.
func ValidatePostContent(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("post content cannot be empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxPostLength {
		return fmt.Errorf("post content is %d characters, the limit is %d", n, MaxPostLength)
	}
	return nil
}

// ValidateID checks a post or user id taken from the command line.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}
	if strings.ContainsAny(id, "/?# \t\n") {
		return fmt.Errorf("invalid %s ID: %q", kind, id)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateBaseURL checks that raw is an absolute http(s) or ws(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid URL %q: scheme must be http, https, ws or wss", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
