package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/habedi/microfeed/auth"
	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/config"
	"github.com/habedi/microfeed/db"
	"github.com/habedi/microfeed/feed"
	"github.com/habedi/microfeed/pkg/media"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg    *config.Config
	gdb    *gorm.DB
	rdb    *redis.Client
	store  *auth.Store
	tokens *client.TokenClient
	svc    *auth.Service
	api    *client.Client
	cache  *feed.Cache // nil with the memory backend
}

// loadConfig is swapped in tests.
var loadConfig = config.Load

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var repo db.TokenRepository
	switch cfg.Store.Backend {
	case config.BackendMemory:
		repo = db.NewMemoryTokenRepository()
		log.Warn().Msg("Using in-memory token storage, the session ends with this process")
	case config.BackendRedis:
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis is unreachable, session reads will be empty")
		}
		repo = db.NewRedisTokenRepository(a.rdb, cfg.Redis.Prefix)
	default:
		gdb, err := db.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.gdb = gdb
		repo = db.NewTokenRepository(gdb)
	}

	// The post cache lives in SQLite unless everything is in memory.
	if cfg.Store.Backend != config.BackendMemory {
		if a.gdb == nil {
			gdb, err := db.Open(cfg.Store.Path)
			if err != nil {
				a.close()
				return nil, fmt.Errorf("open database: %w", err)
			}
			a.gdb = gdb
		}
		a.cache = feed.NewCache(db.NewPostRepository(a.gdb))
	}

	hc := &http.Client{Timeout: cfg.API.Timeout}
	a.store = auth.NewStore(repo)
	a.tokens = client.NewTokenClient(cfg.API.BaseURL, hc)
	a.svc = auth.NewService(a.store, a.tokens, a.tokens)

	opts := []client.Option{client.WithHTTPClient(hc)}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, client.WithRateLimiter(client.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst)))
	}
	a.api = client.New(cfg.API.BaseURL, a.svc, opts...)
	return a, nil
}

func (a *app) close() {
	if err := db.Close(a.gdb); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close the Redis client.")
		}
	}
}

// uploader connects to media storage, or fails when it is not configured.
func (a *app) uploader(ctx context.Context) (*media.Uploader, error) {
	if !a.cfg.MediaEnabled() {
		return nil, errors.New("media storage is not configured, set MICROFEED_MEDIA_ENDPOINT")
	}
	return media.NewUploader(ctx, media.Config{
		Endpoint:  a.cfg.Media.Endpoint,
		AccessKey: a.cfg.Media.AccessKey,
		SecretKey: a.cfg.Media.SecretKey,
		Bucket:    a.cfg.Media.Bucket,
		UseSSL:    a.cfg.Media.UseSSL,
	})
}

// requireSession fails early when there is nothing to authenticate with.
func (a *app) requireSession(ctx context.Context) (auth.Session, error) {
	sess := a.store.Session(ctx)
	if sess.AccessToken == "" && sess.RefreshToken == "" {
		return sess, &auth.AuthFailure{Reason: auth.ReasonNoRefreshToken}
	}
	return sess, nil
}

type runFunc func(cmd *cobra.Command, args []string, a *app) error

// withApp loads the config, builds the app for one command run, and maps
// whatever the command returns to a CLI error.
func withApp(fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return classify(err)
		}
		applyLogLevel(cfg.LogLevel)
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return classify(err)
		}
		defer a.close()
		return classify(fn(cmd, args, a))
	}
}

// applyLogLevel overrides the environment-derived level when the config names one.
func applyLogLevel(level string) {
	if level == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("Ignoring unknown log level")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
