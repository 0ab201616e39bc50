// Package config loads yachtvault runtime configuration.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// CONFIG_FILE, then a .env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Catalog backends.
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Config holds all runtime settings.
type Config struct {
	Env       string `env:"APP_ENV" yaml:"env"`
	HTTPAddr  string `env:"HTTP_ADDR" yaml:"http_addr"`
	Port      string `env:"PORT" yaml:"port"`
	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format"`

	// Catalog storage
	Backend            string        `env:"CATALOG_BACKEND" yaml:"catalog_backend"`
	PublicSupabaseURL  string        `env:"NEXT_PUBLIC_SUPABASE_URL" yaml:"-"`
	SupabaseURL        string        `env:"SUPABASE_URL" yaml:"supabase_url"`
	SupabaseServiceKey string        `env:"SUPABASE_SERVICE_ROLE_KEY" yaml:"-"`
	DatabaseURL        string        `env:"DATABASE_URL" yaml:"database_url"`
	FixturePath        string        `env:"CATALOG_FIXTURE" yaml:"catalog_fixture"`
	YachtsTable        string        `env:"YACHTS_TABLE" yaml:"yachts_table"`
	DetailTable        string        `env:"DETAIL_TABLE" yaml:"detail_table"`
	DBTimeout          time.Duration `env:"DB_TIMEOUT" yaml:"db_timeout"`

	// Caching
	RedisURL          string        `env:"REDIS_URL" yaml:"redis_url"`
	CacheTTL          time.Duration `env:"CACHE_TTL" yaml:"cache_ttl"`
	CacheWarmSchedule string        `env:"CACHE_WARM_SCHEDULE" yaml:"cache_warm_schedule"`

	// HTTP surface
	CORSOrigins    string  `env:"CORS_ORIGINS" yaml:"cors_origins"`
	VercelURL      string  `env:"VERCEL_URL" yaml:"-"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" yaml:"rate_limit_rps"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" yaml:"rate_limit_burst"`
	WebEnabled     bool    `env:"WEB_ENABLED" yaml:"web_enabled"`

	// Used to sign the quiz session cookie. A random key is generated at
	// startup when empty, which invalidates sessions on restart.
	QuizSessionSecret string `env:"QUIZ_SESSION_SECRET" yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env:               "dev",
		Port:              "8080",
		LogLevel:          "info",
		LogFormat:         "text",
		Backend:           BackendPostgREST,
		YachtsTable:       "yachts",
		DetailTable:       "yachts_enhance_data",
		DBTimeout:         10 * time.Second,
		CacheTTL:          10 * time.Minute,
		CacheWarmSchedule: "@every 10m",
		RateLimitRPS:      20,
		RateLimitBurst:    40,
		WebEnabled:        true,
	}
}

// Load builds the configuration from defaults, CONFIG_FILE, .env and the
// environment, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFile reads a YAML file on top of the defaults without consulting the
// environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendPostgREST:
		// A missing URL or key is reported per request, mirroring the
		// "database connection not configured" response.
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendMemory:
		if strings.TrimSpace(c.FixturePath) == "" {
			return fmt.Errorf("CATALOG_FIXTURE is required for the %s backend", BackendMemory)
		}
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.Backend)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// Addr returns the listen address, preferring HTTP_ADDR over PORT.
func (c Config) Addr() string {
	if strings.TrimSpace(c.HTTPAddr) != "" {
		return c.HTTPAddr
	}
	return ":" + c.Port
}

// ResolvedSupabaseURL returns SUPABASE_URL, falling back to the public URL the
// frontend uses.
func (c Config) ResolvedSupabaseURL() string {
	if strings.TrimSpace(c.SupabaseURL) != "" {
		return strings.TrimSpace(c.SupabaseURL)
	}
	return strings.TrimSpace(c.PublicSupabaseURL)
}

// AllowedOrigins returns the CORS allow-list: the local dev frontend, the
// production frontend, the current Vercel deployment and CORS_ORIGINS.
func (c Config) AllowedOrigins() []string {
	origins := []string{
		"http://localhost:3000",
		"https://yachtvault.vercel.app",
	}
	if v := strings.TrimSpace(c.VercelURL); v != "" {
		origins = append(origins, "https://"+strings.TrimPrefix(v, "https://"))
	}
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
