// Package config loads the server configuration.
//
// PRECEDENCE (highest wins):
//  1. environment variables (a .env file in the working directory is
//     loaded into the environment first, without overriding real ones)
//  2. the YAML file named by CONFIG_FILE, if set
//  3. the built-in defaults in defaults.yaml
//
// Keys are flat and snake_case in every source. GOOGLE_CLIENT_ID in the
// environment and google_client_id in YAML are the same key.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const maxConfigFileSize = 1 << 20

// platformPrefix marks credential keys: platform_<type>_<credential>.
const platformPrefix = "platform_"

// Config is the full server configuration.
type Config struct {
	Port      int    `koanf:"port"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	GoogleRedirectURI  string `koanf:"google_redirect_uri"`

	JWTSecret        string `koanf:"jwt_secret"`
	CookieSecure     bool   `koanf:"cookie_secure"`
	AllowlistEnabled bool   `koanf:"allowlist_enabled"`
	SuccessRedirect  string `koanf:"auth_success_redirect"`
	FailureRedirect  string `koanf:"auth_failure_redirect"`

	DBDriver    string `koanf:"db_driver"`
	DatabaseURL string `koanf:"database_url"`
	DBHost      string `koanf:"db_host"`
	DBPort      int    `koanf:"db_port"`
	DBUser      string `koanf:"db_user"`
	DBPassword  string `koanf:"db_password"`
	DBName      string `koanf:"db_name"`
	DBSSLMode   string `koanf:"db_sslmode"`
	DBPath      string `koanf:"db_path"`

	HTTPTimeout  time.Duration `koanf:"http_timeout"`
	SyncInterval time.Duration `koanf:"sync_interval"`

	// LongRequestTimeout bounds syncs and AI analysis triggered over HTTP.
	// Zero uses the handler default.
	LongRequestTimeout time.Duration `koanf:"long_request_timeout"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	LLMAPIKey  string `koanf:"llm_api_key"`
	LLMModel   string `koanf:"llm_model"`
	LLMBaseURL string `koanf:"llm_base_url"`

	// Platforms holds seed credentials per network, collected from
	// platform_<type>_<key> entries.
	Platforms map[model.PlatformType]map[string]string `koanf:"-"`
}

// Load reads .env, the optional CONFIG_FILE and the environment, then
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load without the .env step. An empty configFile skips the
// YAML layer.
func LoadFile(configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if configFile != "" {
		content, err := readConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
	}

	// GOOGLE_CLIENT_ID -> google_client_id. Keys stay flat.
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.Platforms = platformCredentials(k)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Config("CONFIG_FILE", fmt.Sprintf("cannot open %s", path))
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if len(content) > maxConfigFileSize {
		return nil, apperror.Config("CONFIG_FILE", "file is larger than 1MB")
	}
	return content, nil
}

// platformCredentials groups platform_<type>_<key> entries by network.
// Unknown networks are ignored.
func platformCredentials(k *koanf.Koanf) map[model.PlatformType]map[string]string {
	out := make(map[model.PlatformType]map[string]string)
	for key, val := range k.All() {
		rest, ok := strings.CutPrefix(key, platformPrefix)
		if !ok {
			continue
		}
		name, cred, ok := strings.Cut(rest, "_")
		if !ok || cred == "" {
			continue
		}
		t, ok := model.ParsePlatformType(name)
		if !ok {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(val))
		if s == "" {
			continue
		}
		if out[t] == nil {
			out[t] = make(map[string]string)
		}
		out[t][cred] = s
	}
	return out
}

// Validate reports the first missing or invalid setting as an
// apperror.Config naming the environment variable.
func (c *Config) Validate() error {
	required := []struct {
		key, val string
	}{
		{"GOOGLE_CLIENT_ID", c.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", c.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URI", c.GoogleRedirectURI},
		{"JWT_SECRET", c.JWTSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return apperror.Config(r.key, "is required")
		}
	}
	if len(c.JWTSecret) < 16 {
		return apperror.Config("JWT_SECRET", "must be at least 16 characters")
	}
	if _, err := url.ParseRequestURI(c.GoogleRedirectURI); err != nil {
		return apperror.Config("GOOGLE_REDIRECT_URI", "must be an absolute URL")
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return apperror.Config("DB_PATH", "is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			for _, r := range []struct{ key, val string }{
				{"DB_HOST", c.DBHost},
				{"DB_USER", c.DBUser},
				{"DB_PASSWORD", c.DBPassword},
				{"DB_NAME", c.DBName},
			} {
				if r.val == "" {
					return apperror.Config(r.key, "is required when DB_DRIVER=postgres and DATABASE_URL is unset")
				}
			}
		}
	default:
		return apperror.Config("DB_DRIVER", fmt.Sprintf("unsupported driver %q (want sqlite or postgres)", c.DBDriver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return apperror.Config("PORT", "must be between 1 and 65535")
	}
	if c.HTTPTimeout <= 0 {
		return apperror.Config("HTTP_TIMEOUT", "must be positive")
	}
	if c.SyncInterval < 0 {
		return apperror.Config("SYNC_INTERVAL", "must not be negative")
	}
	if c.LongRequestTimeout < 0 {
		return apperror.Config("LONG_REQUEST_TIMEOUT", "must not be negative")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return apperror.Config("RATE_LIMIT_REQUESTS", "rate limit must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return apperror.Config("LOG_FORMAT", "must be text or json")
	}
	return nil
}

// StoreDriver maps DB_DRIVER to the database/sql driver name.
func (c *Config) StoreDriver() string {
	if c.DBDriver == "postgres" {
		return "pgx"
	}
	return "sqlite"
}

// DSN returns the data source for StoreDriver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}
	return u.String()
}

// AnalysisEnabled reports whether an LLM key is configured.
func (c *Config) AnalysisEnabled() bool {
	return c.LLMAPIKey != ""
}

// SeededPlatforms lists the networks with seed credentials, sorted.
func (c *Config) SeededPlatforms() []model.PlatformType {
	out := make([]model.PlatformType, 0, len(c.Platforms))
	for t := range c.Platforms {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
