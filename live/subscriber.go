// Package live consumes the server's push channel of newly created posts.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// TokenFunc returns the access token to present when connecting, or "".
type TokenFunc func(ctx context.Context) string

// Handler receives every post pushed on the channel.
type Handler func(post client.Post)

// Subscriber connects to the live channel and reconnects with backoff until
// its context ends.
type Subscriber struct {
	URL   string
	Token TokenFunc

	// MinBackoff and MaxBackoff bound the delay between reconnects.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	dialer websocket.Dialer
}

func NewSubscriber(url string, token TokenFunc) *Subscriber {
	return &Subscriber{
		URL:        url,
		Token:      token,
		MinBackoff: time.Second,
		MaxBackoff: 30 * time.Second,
		dialer:     websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run delivers posts to handle until ctx is cancelled, which is the only way
// it returns nil.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	backoff := s.MinBackoff
	for {
		connected, err := s.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = s.MinBackoff
		}
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("Live channel disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.MaxBackoff {
			backoff = s.MaxBackoff
		}
	}
}

// session runs one connection. connected reports whether the handshake succeeded.
func (s *Subscriber) session(ctx context.Context, handle Handler) (bool, error) {
	headers := http.Header{}
	if s.Token != nil {
		if tok := s.Token(ctx); tok != "" {
			headers.Set("Authorization", "Bearer "+tok)
		}
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.URL, headers)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: HTTP %d: %w", s.URL, resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial %s: %w", s.URL, err)
	}
	log.Info().Str("url", s.URL).Msg("Live channel connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errors.New("server closed the connection")
			}
			return true, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		post, ok, err := DecodeEvent(data)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring undecodable live message")
			continue
		}
		if !ok {
			continue
		}
		metrics.LivePosts.Inc()
		handle(post)
	}
}

// DecodeEvent extracts a post from a live message. Messages are either a bare
// post or an envelope {"type": ..., "post": {...}}; ok is false for envelopes
// that carry no post.
func DecodeEvent(data []byte) (client.Post, bool, error) {
	var envelope struct {
		Type    string          `json:"type"`
		Post    json.RawMessage `json:"post"`
		Content json.RawMessage `json:"content"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return client.Post{}, false, err
	}
	raw := data
	switch {
	case hasValue(envelope.Post):
		raw = envelope.Post
	case hasValue(envelope.Content) && !hasValue(envelope.ID):
		raw = envelope.Content
	case !hasValue(envelope.ID):
		return client.Post{}, false, nil
	}
	var post client.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return client.Post{}, false, err
	}
	if post.ID == "" {
		return client.Post{}, false, nil
	}
	return post, true, nil
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
