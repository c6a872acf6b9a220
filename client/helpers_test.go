package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/habedi/microfeed/auth"
	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/db"
	"github.com/stretchr/testify/require"
)

// callLog records the paths a fake backend was asked for, in order.
type callLog struct {
	mu    sync.Mutex
	paths []string
	ids   []string
}

func (l *callLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, r.URL.Path)
	l.ids = append(l.ids, r.Header.Get("X-Request-ID"))
}

func (l *callLog) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

func (l *callLog) RequestIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

// newTestClient starts handler behind an httptest server and wires a client
// whose refresher talks to the same server.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*client.Client, *auth.Store, *callLog, *httptest.Server) {
	t.Helper()
	calls := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.add(r)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	store := auth.NewStore(db.NewMemoryTokenRepository())
	tokens := client.NewTokenClient(server.URL, server.Client())
	svc := auth.NewService(store, tokens, tokens)
	c := client.New(server.URL, svc, client.WithHTTPClient(server.Client()))
	return c, store, calls, server
}

func seedSession(t *testing.T, store *auth.Store, access, refresh string) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), access, refresh))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
