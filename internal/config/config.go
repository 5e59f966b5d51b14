// Package config loads and validates application configuration.
//
// Sources, highest priority first:
//  1. Environment variables
//  2. Config file (~/.quill/config.yaml or ./config.yaml)
//  3. Defaults
//
// Secrets (postgres password, JWT secret, upstream API key) are masked in
// MarshalJSON and String, so a Config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	ErrConfigNil            = errors.New("configuration is nil")
	ErrMissingAPIKey        = errors.New("missing upstream API key")
	ErrMissingJWTSecret     = errors.New("missing JWT secret")
	ErrWeakJWTSecret        = errors.New("JWT secret too short")
	ErrInvalidModelName     = errors.New("invalid model name")
	ErrInvalidTemperature   = errors.New("invalid temperature")
	ErrInvalidMaxTokens     = errors.New("invalid max tokens")
	ErrInvalidUpstreamURL   = errors.New("invalid upstream base URL")
	ErrInvalidListenAddr    = errors.New("invalid listen address")
	ErrInvalidPostgresHost  = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort  = errors.New("invalid PostgreSQL port")
	ErrInvalidPostgresDB    = errors.New("invalid PostgreSQL database name")
	ErrInvalidSSLMode       = errors.New("invalid PostgreSQL SSL mode")
	ErrInvalidPromptBudget  = errors.New("invalid prompt character budget")
	ErrInvalidUploadLimit   = errors.New("invalid upload size limit")
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")
)

const (
	// DefaultEmbedderModel outputs 3072 dimensions by default but supports
	// truncation to 768, which is what the knowledge_chunks schema uses.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultPromptBudget is the character budget for knowledge-base text
	// injected into the prompt before chunk retrieval kicks in.
	DefaultPromptBudget = 48000

	// DefaultUploadLimit caps document uploads at 10 MiB.
	DefaultUploadLimit = 10 << 20

	// MinJWTSecretLen is the minimum accepted HMAC secret length.
	MinJWTSecretLen = 32
)

// Config stores the full application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a new
// secret field, update MarshalJSON too.
type Config struct {
	// HTTP server
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Upstream generative-model endpoint
	UpstreamBaseURL string  `mapstructure:"upstream_base_url" json:"upstream_base_url"`
	UpstreamAPIKey  string  `mapstructure:"upstream_api_key" json:"upstream_api_key"` // SENSITIVE
	ModelName       string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel   string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens" json:"max_tokens"`
	PromptBudget    int     `mapstructure:"prompt_budget" json:"prompt_budget"`

	// Auth
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Uploads
	UploadLimit int64 `mapstructure:"upload_limit" json:"upload_limit"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration from defaults, file and environment, then
// validates it (fail-fast).
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".quill")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	v.SetDefault("upstream_base_url", "https://api.example-llm.com/v1")
	v.SetDefault("model_name", "quill-assistant")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("prompt_budget", DefaultPromptBudget)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "quill")
	v.SetDefault("postgres_password", "quill_dev_password")
	v.SetDefault("postgres_db_name", "quill")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("upload_limit", DefaultUploadLimit)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment overrides explicitly. Secrets only
// arrive via environment, never via the config file defaults.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "QUILL_LISTEN_ADDR")
	mustBind("cors_origins", "QUILL_CORS_ORIGINS")
	mustBind("trust_proxy", "QUILL_TRUST_PROXY")
	mustBind("rate_burst", "QUILL_RATE_BURST")

	mustBind("upstream_base_url", "QUILL_UPSTREAM_URL")
	mustBind("upstream_api_key", "QUILL_UPSTREAM_API_KEY")
	mustBind("model_name", "QUILL_MODEL_NAME")
	mustBind("embedder_model", "QUILL_EMBEDDER_MODEL")

	mustBind("jwt_secret", "QUILL_JWT_SECRET")

	mustBind("log_level", "QUILL_LOG_LEVEL")
	mustBind("log_json", "QUILL_LOG_JSON")
}

// parseDatabaseURL overrides the postgres_* fields from DATABASE_URL when
// set. The URL form wins over individual fields.
func (c *Config) parseDatabaseURL() error {
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("malformed port %q: %w", p, err)
		}
		c.PostgresPort = port
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := filepath.Base(u.Path); db != "." && db != "/" {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// maskedValue replaces secret content in logged output. Full-width blocks
// avoid accidental substring matches against real secret material.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each end for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with secret masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.JWTSecret = maskSecret(a.JWTSecret)
	a.UpstreamAPIKey = maskSecret(a.UpstreamAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
