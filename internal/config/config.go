package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port      int    `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// DatabaseURL selects the Postgres design store; empty keeps designs in memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	JWTSecret     string        `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	WidgetAPIKeys string        `envconfig:"WIDGET_API_KEYS"`

	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	StorageDriver  string `envconfig:"STORAGE_DRIVER" default:"local"`
	StorageDir     string `envconfig:"STORAGE_DIR" default:"./data/storage"`
	PublicBaseURL  string `envconfig:"PUBLIC_BASE_URL"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket       string `envconfig:"S3_BUCKET" default:"canvas-exports"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`

	// RedisAddr selects the Redis export cache; empty keeps exports in memory.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	ExportCacheTTL time.Duration `envconfig:"EXPORT_CACHE_TTL" default:"1h"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"30"`

	// ContainmentPolicy is "center" or "bounds"; see zone.ParsePolicy.
	ContainmentPolicy string `envconfig:"CONTAINMENT_POLICY" default:"center"`

	// BannedWords is a comma separated list screened in text and QR data.
	BannedWords   []string `envconfig:"BANNED_WORDS"`
	MaxTextLength int      `envconfig:"MAX_TEXT_LENGTH" default:"500"`

	HistorySize    int   `envconfig:"HISTORY_SIZE" default:"50"`
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
}

// Load reads .env when present, then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.APIKeys(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIKeys parses WIDGET_API_KEYS, a comma separated list of
// publicKey:bcryptHash pairs.
func (c *Config) APIKeys() (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range strings.Split(c.WidgetAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, hash, ok := strings.Cut(pair, ":")
		if !ok || key == "" || hash == "" {
			return nil, fmt.Errorf("WIDGET_API_KEYS: malformed entry %q", key)
		}
		keys[key] = hash
	}
	return keys, nil
}

func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
