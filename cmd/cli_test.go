package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePost = `{"id": 1, "author": {"id": 7, "username": "ada"}, "text": "hello world",
	"created_at": "2024-05-01T12:00:00Z", "likes_count": 2, "is_liked": false}`

// fakeBackend is a minimal feed API keeping just enough state for the commands.
type fakeBackend struct {
	mu        sync.Mutex
	liked     bool
	following bool
	deleted   bool
	paths     []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, r.Method+" "+r.URL.Path)

	reply := func(status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}

	switch r.URL.Path {
	case "/token/":
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "pw" {
			reply(http.StatusUnauthorized, `{"detail": "No active account found with the given credentials"}`)
			return
		}
		reply(http.StatusOK, `{"access": "acc-1", "refresh": "ref-1", "user": {"id": 7, "username": "ada"}}`)
		return
	case "/token/refresh/":
		reply(http.StatusOK, `{"access": "acc-2"}`)
		return
	case "/register/":
		reply(http.StatusCreated, `{"id": 7, "username": "ada"}`)
		return
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer acc-") {
		reply(http.StatusUnauthorized, `{"detail": "Authentication credentials were not provided."}`)
		return
	}

	switch {
	case r.URL.Path == "/me/":
		reply(http.StatusOK, `{"id": 7, "username": "ada", "email": "ada@example.com"}`)
	case r.URL.Path == "/posts/" && r.Method == http.MethodGet:
		if b.deleted {
			reply(http.StatusOK, `{"next": null, "results": []}`)
			return
		}
		reply(http.StatusOK, `{"next": null, "results": [`+samplePost+`]}`)
	case r.URL.Path == "/posts/" && r.Method == http.MethodPost:
		reply(http.StatusCreated, `{"id": 2, "author": {"id": 7, "username": "ada"}, "text": "fresh post", "likes_count": 0}`)
	case r.Method != http.MethodPost && strings.HasSuffix(r.URL.Path, "/like/"),
		r.Method != http.MethodPost && strings.HasSuffix(r.URL.Path, "/follow/"):
		reply(http.StatusMethodNotAllowed, `{"detail": "Method \"`+r.Method+`\" not allowed."}`)
	case r.URL.Path == "/posts/1/like/":
		b.liked = !b.liked
		if b.liked {
			reply(http.StatusOK, `{"likes_count": 3, "is_liked": true}`)
		} else {
			reply(http.StatusOK, `{"likes_count": 2, "is_liked": false}`)
		}
	case r.URL.Path == "/posts/1/" && r.Method == http.MethodGet:
		reply(http.StatusOK, samplePost)
	case r.URL.Path == "/posts/1/" && r.Method == http.MethodDelete:
		b.deleted = true
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/users/8/follow/":
		b.following = !b.following
		if b.following {
			reply(http.StatusCreated, `{"status": "followed", "is_following": true}`)
		} else {
			reply(http.StatusOK, `{"status": "unfollowed", "is_following": false}`)
		}
	case r.URL.Path == "/users/ada/":
		reply(http.StatusOK, `{"user": {"id": 7, "username": "ada"}, "is_following": false, "posts": [`+samplePost+`]}`)
	default:
		reply(http.StatusNotFound, `{"detail": "Not found."}`)
	}
}

// setupEnv points the CLI at a fresh data dir and a fake backend.
func setupEnv(t *testing.T) *fakeBackend {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	t.Setenv("MICROFEED_HOME", t.TempDir())
	t.Setenv("MICROFEED_API_BASE_URL", srv.URL)
	t.Setenv("MICROFEED_STORE_BACKEND", "sqlite")

	oldReader, oldPassword := inputReader, readPassword
	t.Cleanup(func() { inputReader, readPassword = oldReader, oldPassword })
	readPassword = func() ([]byte, error) { return []byte("pw"), nil }
	inputReader = bufio.NewReader(strings.NewReader(""))
	return backend
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := createRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// TestCreateRootCmd checks that createRootCmd returns a root command
// with the expected use string, subcommands, and a replaced help command.
func TestCreateRootCmd(t *testing.T) {
	rootCmd := createRootCmd()
	assert.Equal(t, "microfeed", rootCmd.Use)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
		assert.NotEqual(t, "help", c.Use, "default help command should be replaced")
	}
	for _, want := range []string{"login", "logout", "feed", "post", "like", "unlike", "follow", "unfollow", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestLoginListLikeLogout(t *testing.T) {
	backend := setupEnv(t)

	out, err := run(t, "login", "-u", "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada.")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: ada")

	out, err = run(t, "feed", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "@ada")

	out, err = run(t, "like", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Post 1: 3 likes")
	assert.True(t, backend.liked)

	out, err = run(t, "feed", "list", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "3 ♥", "cached copy reflects the like")

	_, err = run(t, "logout")
	require.NoError(t, err)

	_, err = run(t, "feed", "list")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestLoginBadPassword(t *testing.T) {
	setupEnv(t)
	readPassword = func() ([]byte, error) { return []byte("nope"), nil }

	_, err := run(t, "login", "-u", "ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No active account")
}

func TestLoginPromptsForUsername(t *testing.T) {
	setupEnv(t)
	inputReader = bufio.NewReader(strings.NewReader("ada\n"))

	out, err := run(t, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: ")
	assert.Contains(t, out, "Signed in as ada.")
}

func TestPostCreateAndDelete(t *testing.T) {
	backend := setupEnv(t)
	_, err := run(t, "login", "-u", "ada")
	require.NoError(t, err)

	out, err := run(t, "post", "create", "fresh", "post")
	require.NoError(t, err)
	assert.Contains(t, out, "Published post 2.")

	out, err = run(t, "post", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted post 1.")
	assert.True(t, backend.deleted)
	assert.Contains(t, backend.paths, "GET /posts/1/", "uncached post is fetched first")

	_, err = run(t, "post", "create", "   ")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestLikeTwiceThenUnlike(t *testing.T) {
	backend := setupEnv(t)
	_, err := run(t, "login", "-u", "ada")
	require.NoError(t, err)
	_, err = run(t, "feed", "list")
	require.NoError(t, err)

	out, err := run(t, "like", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Post 1: 3 likes")

	out, err = run(t, "like", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Post 1: 3 likes")
	assert.True(t, backend.liked, "liking a liked post keeps it liked")

	out, err = run(t, "unlike", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Post 1: 2 likes")
	assert.False(t, backend.liked)
	assert.Equal(t, 2, countPath(backend, "POST /posts/1/like/"))
}

func TestFollowAndProfile(t *testing.T) {
	backend := setupEnv(t)
	_, err := run(t, "login", "-u", "ada")
	require.NoError(t, err)

	out, err := run(t, "follow", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Following user 8")

	// Each run starts without local follow state.
	out, err = run(t, "follow", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Following user 8")
	assert.True(t, backend.following)

	out, err = run(t, "unfollow", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Not following user 8")
	assert.False(t, backend.following)

	out, err = run(t, "feed", "list", "--user", "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "@ada (user 7, not following)")
	assert.Contains(t, out, "hello world")
}

func countPath(b *fakeBackend, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.paths {
		if p == path {
			n++
		}
	}
	return n
}

func TestExportAndVerify(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "login", "-u", "ada")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "feed.jsonl")
	out, err := run(t, "feed", "export", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 posts")

	out, err = run(t, "feed", "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestInvalidFlags(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "feed", "list", "--pages", "0")
	assert.Equal(t, 2, exitCode(err))

	_, err = run(t, "like", "1", "--workers", "0")
	assert.Equal(t, 2, exitCode(err))
}

// TestExecuteFailure runs Execute in a subprocess and checks that a
// validation error ends the process with status 2.
func TestExecuteFailure(t *testing.T) {
	if os.Getenv("TEST_EXECUTE_FAILURE") == "1" {
		os.Args = []string{"microfeed", "feed", "list", "--pages", "0"}
		Execute(context.Background())
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestExecuteFailure")
	cmd.Env = append(os.Environ(),
		"TEST_EXECUTE_FAILURE=1",
		"MICROFEED_HOME="+t.TempDir(),
		"MICROFEED_STORE_BACKEND=memory",
	)
	err := cmd.Run()
	if exitError, ok := err.(*exec.ExitError); ok {
		assert.Equal(t, 2, exitError.ExitCode())
	} else {
		t.Fatalf("expected an exit error, got: %v", err)
	}
}
