package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"nil listen addr", func(c *Config) { c.ListenAddr = "" }, ErrInvalidListenAddr},
		{"no port in addr", func(c *Config) { c.ListenAddr = "localhost" }, ErrInvalidListenAddr},
		{"bad upstream URL", func(c *Config) { c.UpstreamBaseURL = "not a url" }, ErrInvalidUpstreamURL},
		{"upstream scheme", func(c *Config) { c.UpstreamBaseURL = "ftp://example.com" }, ErrInvalidUpstreamURL},
		{"empty model", func(c *Config) { c.ModelName = "  " }, ErrInvalidModelName},
		{"empty embedder", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"temperature low", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"max tokens zero", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"postgres host empty", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"postgres port zero", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"postgres port high", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"postgres db empty", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDB},
		{"ssl mode bogus", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidSSLMode},
		{"prompt budget tiny", func(c *Config) { c.PromptBudget = 10 }, ErrInvalidPromptBudget},
		{"upload limit zero", func(c *Config) { c.UploadLimit = 0 }, ErrInvalidUploadLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestValidateServe(t *testing.T) {
	t.Parallel()

	t.Run("missing API key", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.JWTSecret = strings.Repeat("x", MinJWTSecretLen)
		assert.ErrorIs(t, cfg.ValidateServe(), ErrMissingAPIKey)
	})

	t.Run("missing JWT secret", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.UpstreamAPIKey = "sk-test"
		assert.ErrorIs(t, cfg.ValidateServe(), ErrMissingJWTSecret)
	})

	t.Run("weak JWT secret", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.UpstreamAPIKey = "sk-test"
		cfg.JWTSecret = "short"
		assert.ErrorIs(t, cfg.ValidateServe(), ErrWeakJWTSecret)
	})

	t.Run("complete", func(t *testing.T) {
		t.Parallel()

		cfg := validConfig()
		cfg.UpstreamAPIKey = "sk-test"
		cfg.JWTSecret = strings.Repeat("x", MinJWTSecretLen)
		assert.NoError(t, cfg.ValidateServe())
	})
}
