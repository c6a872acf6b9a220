package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenRepository implements TokenRepository on a Redis hash stored under
// "<prefix>tokens", so several processes on one machine can share a session.
type RedisTokenRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenRepository creates a Redis-based token repository. Prefix may be empty.
func NewRedisTokenRepository(client *redis.Client, prefix string) *RedisTokenRepository {
	if prefix == "" {
		prefix = "microfeed:"
	}
	return &RedisTokenRepository{client: client, prefix: prefix}
}

func (r *RedisTokenRepository) key() string {
	return r.prefix + "tokens"
}

func (r *RedisTokenRepository) Get(ctx context.Context) (*Token, error) {
	if r.client == nil {
		return nil, ErrNotInitialized
	}
	fields, err := r.client.HGetAll(ctx, r.key()).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	token := &Token{
		ID:           tokenRowID,
		AccessToken:  fields["access_token"],
		RefreshToken: fields["refresh_token"],
		User:         fields["user"],
	}
	if ts, ok := fields["updated_at"]; ok {
		if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			token.UpdatedAt = parsed
		}
	}
	return token, nil
}

func (r *RedisTokenRepository) Upsert(ctx context.Context, token *Token) error {
	if r.client == nil {
		return ErrNotInitialized
	}
	token.ID = tokenRowID
	token.UpdatedAt = time.Now().UTC()
	return r.client.HSet(ctx, r.key(),
		"access_token", token.AccessToken,
		"refresh_token", token.RefreshToken,
		"user", token.User,
		"updated_at", token.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
}

func (r *RedisTokenRepository) Clear(ctx context.Context) error {
	if r.client == nil {
		return ErrNotInitialized
	}
	return r.client.Del(ctx, r.key()).Err()
}
