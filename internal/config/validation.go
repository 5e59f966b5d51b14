package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the full configuration and returns the first violation.
// Called by Load; callers constructing a Config by hand (tests) should
// call it themselves.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidListenAddr, c.ListenAddr)
	}

	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}

	if c.PromptBudget < 1000 {
		return fmt.Errorf("%w: %d (minimum 1000)", ErrInvalidPromptBudget, c.PromptBudget)
	}
	if c.UploadLimit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUploadLimit, c.UploadLimit)
	}

	return nil
}

// ValidateServe performs the additional checks required before serving
// traffic: secrets must be present and strong enough.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.UpstreamAPIKey == "" {
		return fmt.Errorf("%w: set QUILL_UPSTREAM_API_KEY", ErrMissingAPIKey)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: set QUILL_JWT_SECRET", ErrMissingJWTSecret)
	}
	if len(c.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrWeakJWTSecret, MinJWTSecretLen, len(c.JWTSecret))
	}

	return nil
}

func (c *Config) validateUpstream() error {
	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidUpstreamURL, c.UpstreamBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidUpstreamURL, u.Scheme)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmbedderModel)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (range 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 128000 {
		return fmt.Errorf("%w: %d (range 1-128000)", ErrInvalidMaxTokens, c.MaxTokens)
	}

	return nil
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresDB)
	}

	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSSLMode, c.PostgresSSLMode)
	}

	return nil
}
