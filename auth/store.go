package auth

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/habedi/microfeed/db"
	"github.com/rs/zerolog/log"
)

// Kind selects which credential Get returns.
type Kind int

const (
	AccessToken Kind = iota
	RefreshToken
)

func (k Kind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// Store is the single owner of the persisted session.
// A failing repository never surfaces to readers: reads return absent values
// and failed writes are logged, so callers must tolerate missing tokens.
type Store struct {
	mu   sync.Mutex
	repo db.TokenRepository
}

// NewStore wraps a token repository. A nil repository behaves like disabled storage.
func NewStore(repo db.TokenRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) load(ctx context.Context) *db.Token {
	if s.repo == nil {
		return nil
	}
	tok, err := s.repo.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Token storage unavailable, treating session as empty")
		return nil
	}
	return tok
}

// Get returns the requested token, or "" when it is absent.
func (s *Store) Get(ctx context.Context, kind Kind) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.load(ctx)
	if tok == nil {
		return ""
	}
	if kind == RefreshToken {
		return tok.RefreshToken
	}
	return tok.AccessToken
}

// Save stores a new access token. An empty refresh keeps the stored one.
func (s *Store) Save(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := db.Token{}
	if cur := s.load(ctx); cur != nil {
		next = *cur
	}
	next.AccessToken = access
	if refresh != "" {
		next.RefreshToken = refresh
	}
	return s.write(ctx, &next)
}

// SaveSession replaces the whole session, as sign-in does.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := db.Token{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}
	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return err
		}
		next.User = string(raw)
	}
	return s.write(ctx, &next)
}

// SetUser attaches the identity record to the current tokens.
func (s *Store) SetUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := db.Token{}
	if cur := s.load(ctx); cur != nil {
		next = *cur
	}
	next.User = ""
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return err
		}
		next.User = string(raw)
	}
	return s.write(ctx, &next)
}

func (s *Store) write(ctx context.Context, tok *db.Token) error {
	if s.repo == nil {
		log.Warn().Msg("Token storage disabled, dropping write")
		return db.ErrNotInitialized
	}
	if err := s.repo.Upsert(ctx, tok); err != nil {
		log.Warn().Err(err).Msg("Failed to persist tokens")
		return err
	}
	return nil
}

// Clear removes every credential and the user.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clear tokens")
		return err
	}
	log.Debug().Msg("Token store cleared")
	return nil
}

// Session returns a snapshot of the stored session.
func (s *Store) Session(ctx context.Context) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.load(ctx)
	if tok == nil {
		return Session{}
	}
	sess := Session{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if tok.User != "" {
		var u User
		if err := json.Unmarshal([]byte(tok.User), &u); err != nil {
			log.Warn().Err(err).Msg("Stored user record is corrupt, ignoring it")
		} else {
			sess.User = &u
		}
	}
	return sess
}
