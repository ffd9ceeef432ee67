// Package tenantauth turns wallet credentials into bearer tokens and bearer
// tokens back into request-scoped wallet sessions.
package tenantauth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/louisbranch/showcase/internal/platform/config"
)

// SupportedAlgorithms lists the HMAC algorithms a deployment may configure.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

const (
	defaultAlgorithm = "HS256"
	defaultTTL       = 300 * time.Minute
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	SecretKey string        `env:"JWT_SECRET_KEY"`
	Algorithm string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
	TTL       time.Duration `env:"JWT_TTL" envDefault:"300m"`
}

// Config defines how bearer tokens are signed and verified. One algorithm
// is accepted at a time.
type Config struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
	Now       func() time.Time
}

// LoadConfigFromEnv reads token configuration from SHOWCASE_JWT_* variables.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := config.ParseEnvWithPrefix(&raw, config.EnvPrefix); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	cfg := Config{
		Secret:    []byte(strings.TrimSpace(raw.SecretKey)),
		Algorithm: raw.Algorithm,
		TTL:       raw.TTL,
		Now:       now,
	}
	if len(cfg.Secret) == 0 {
		return Config{}, fmt.Errorf("%sJWT_SECRET_KEY is required", config.EnvPrefix)
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	if len(c.Secret) == 0 {
		return Config{}, fmt.Errorf("token secret is required")
	}
	c.Algorithm = strings.ToUpper(strings.TrimSpace(c.Algorithm))
	if c.Algorithm == "" {
		c.Algorithm = defaultAlgorithm
	}
	if !slices.Contains(SupportedAlgorithms, c.Algorithm) {
		return Config{}, fmt.Errorf("token algorithm %q is not supported", c.Algorithm)
	}
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.TTL < 0 {
		return Config{}, fmt.Errorf("token ttl must be positive")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}
