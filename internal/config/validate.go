package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks the loaded config for problems that would only surface at
// request time. All failures are collected into one joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// The codec derives a fixed 32-byte key from the secret, so any length
	// decrypts, but a short secret weakens every stored key.
	if c.Encryption.Secret == "" {
		errs = append(errs, "ENCRYPTION_SECRET is required")
	} else if len(c.Encryption.Secret) < 32 {
		slog.Warn("ENCRYPTION_SECRET is shorter than 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	for name, port := range map[string]int{
		"SERVER_PORT": c.Server.Port,
		"DB_PORT":     c.DB.Port,
		"REDIS_PORT":  c.Redis.Port,
	} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("%s must be 1-65535, got %d", name, port))
		}
	}

	if c.OpenAI.BaseURL == "" {
		errs = append(errs, "OPENAI_BASE_URL is required")
	}

	// Empty default key is allowed: users with personal keys still work.
	if c.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty; requests without a personal key will fail upstream")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
