package operations

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/pkg/hasher"
	"github.com/rs/zerolog/log"
)

// ChecksumAlgo is the digest written next to every export.
const ChecksumAlgo = "sha256"

// ExportResult describes a finished export.
type ExportResult struct {
	Path     string
	Count    int
	Checksum string
}

// ChecksumPath returns the sidecar file holding the digest of an export.
func ChecksumPath(path string) string {
	return path + "." + ChecksumAlgo
}

// ExportFeed writes posts to path as JSON lines, then writes a checksum
// sidecar. onPost, if set, is called after each post is written.
func ExportFeed(ctx context.Context, posts []client.Post, path string, onPost func()) (ExportResult, error) {
	if path == "" {
		return ExportResult{}, fmt.Errorf("export path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ExportResult{}, err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return ExportResult{}, err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	count := 0
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			f.Close()
			return ExportResult{}, err
		}
		if err := enc.Encode(p); err != nil {
			f.Close()
			return ExportResult{}, fmt.Errorf("encode post %s: %w", p.ID, err)
		}
		count++
		if onPost != nil {
			onPost()
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return ExportResult{}, err
	}
	if err := f.Close(); err != nil {
		return ExportResult{}, err
	}

	sum, err := hasher.GenerateHash(path, ChecksumAlgo)
	if err != nil {
		return ExportResult{}, err
	}
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(path))
	if err := os.WriteFile(ChecksumPath(path), []byte(line), 0o644); err != nil {
		return ExportResult{}, err
	}

	log.Info().Str("path", path).Int("posts", count).Msg("Feed exported")
	return ExportResult{Path: path, Count: count, Checksum: sum}, nil
}

// VerifyExport recomputes the digest of path and compares it with its sidecar.
func VerifyExport(path string) (bool, error) {
	raw, err := os.ReadFile(ChecksumPath(path))
	if err != nil {
		return false, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return false, fmt.Errorf("checksum file %s is empty", ChecksumPath(path))
	}
	sum, err := hasher.GenerateHash(path, ChecksumAlgo)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, fields[0]), nil
}

// ReadExport loads the posts of an export back, in order.
func ReadExport(path string) ([]client.Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var posts []client.Post
	dec := json.NewDecoder(f)
	for dec.More() {
		var p client.Post
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode post %d: %w", len(posts)+1, err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}
