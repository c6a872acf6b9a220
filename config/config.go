package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. MICROFEED_API_BASE_URL.
const EnvPrefix = "MICROFEED"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type APIConfig struct {
	BaseURL   string
	LiveURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

type StoreConfig struct {
	Backend string
	Path    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// MediaConfig points at the S3-compatible bucket used for post images.
// An empty Endpoint disables uploads.
type MediaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	API         APIConfig
	Store       StoreConfig
	Redis       RedisConfig
	Media       MediaConfig
	LogLevel    string
	MetricsAddr string
	DataDir     string
}

// DataDir returns the directory holding the database and config file.
// MICROFEED_HOME wins over XDG_DATA_HOME, which wins over ~/.microfeed.
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "_HOME"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "microfeed")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".microfeed"
	}
	return filepath.Join(home, ".microfeed")
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("api.live_url", "ws://127.0.0.1:8001/ws/feed/")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", filepath.Join(dataDir, "microfeed.db"))
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "microfeed:")
	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.access_key", "")
	v.SetDefault("media.secret_key", "")
	v.SetDefault("media.bucket", "microfeed-media")
	v.SetDefault("media.use_ssl", false)
	v.SetDefault("log.level", "")
	v.SetDefault("metrics.addr", "")
}

// Load reads .env files, the optional config.yaml in the data directory, and
// MICROFEED_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to parse .env file")
	}

	dataDir := DataDir()
	v := viper.New()
	setDefaults(v, dataDir)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config file")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		API: APIConfig{
			BaseURL:   v.GetString("api.base_url"),
			LiveURL:   v.GetString("api.live_url"),
			Timeout:   v.GetDuration("api.timeout"),
			RateLimit: v.GetFloat64("api.rate_limit"),
			Burst:     v.GetInt("api.burst"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("store.backend")),
			Path:    v.GetString("store.path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Media: MediaConfig{
			Endpoint:  v.GetString("media.endpoint"),
			AccessKey: v.GetString("media.access_key"),
			SecretKey: v.GetString("media.secret_key"),
			Bucket:    v.GetString("media.bucket"),
			UseSSL:    v.GetBool("media.use_ssl"),
		},
		LogLevel:    v.GetString("log.level"),
		MetricsAddr: v.GetString("metrics.addr"),
		DataDir:     dataDir,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative, got %v", c.API.RateLimit)
	}
	return nil
}

// MediaEnabled reports whether image uploads are configured.
func (c *Config) MediaEnabled() bool {
	return c.Media.Endpoint != "" && c.Media.Bucket != ""
}
