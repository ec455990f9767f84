// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/PaulBabatuyi/directChat/internal/crypto"
)

// Config holds every setting the API process reads at startup.
type Config struct {
	MongoURI      string `env:"MONGODB_URI,required=true"`
	MongoDatabase string `env:"MONGODB_DATABASE,default=chat_db"`

	// JWT_KEYS ("kid:secret,...") takes precedence over JWT_SECRET.
	JWTSecret    string        `env:"JWT_SECRET"`
	JWTKeys      string        `env:"JWT_KEYS"`
	JWTActiveKID string        `env:"JWT_ACTIVE_KID"`
	TokenTTL     time.Duration `env:"TOKEN_TTL,default=24h"`

	// MESSAGE_KEYS ("kid:base64key,...") takes precedence over MESSAGE_KEY.
	MessageKey       string `env:"MESSAGE_KEY"`
	MessageKeys      string `env:"MESSAGE_KEYS"`
	MessageActiveKID string `env:"MESSAGE_ACTIVE_KID"`

	HTTPPort string `env:"HTTP_PORT,default=8080"`
	GRPCPort string `env:"GRPC_PORT,default=50051"`

	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`
	RequireTLS bool   `env:"REQUIRE_TLS,default=false"`

	RedisURL string `env:"REDIS_URL"`

	RateLimitRPM     int `env:"RATE_LIMIT_RPM,default=10"`
	SendRateLimitRPM int `env:"SEND_RATE_LIMIT_RPM,default=120"`

	DispatchWorkers int           `env:"DISPATCH_WORKERS,default=4"`
	DispatchBuffer  int           `env:"DISPATCH_BUFFER,default=256"`
	PublishTimeout  time.Duration `env:"PUBLISH_TIMEOUT,default=2s"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks combinations go-env cannot express.
func (c Config) Validate() error {
	if c.JWTSecret == "" && c.JWTKeys == "" {
		return errors.New("JWT_SECRET or JWT_KEYS is required")
	}
	if c.MessageKey == "" && c.MessageKeys == "" {
		return errors.New("MESSAGE_KEY or MESSAGE_KEYS is required")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.RequireTLS && c.TLSCert == "" {
		return errors.New("REQUIRE_TLS is set but TLS_CERT/TLS_KEY are missing")
	}
	if c.RateLimitRPM <= 0 || c.SendRateLimitRPM <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.DispatchWorkers <= 0 || c.DispatchBuffer <= 0 {
		return errors.New("DISPATCH_WORKERS and DISPATCH_BUFFER must be positive")
	}
	return nil
}

// JWTKeyring returns the HMAC secrets by kid and the kid used for signing.
// A lone JWT_SECRET is served under the empty kid.
func (c Config) JWTKeyring() (map[string]string, string, error) {
	if c.JWTKeys == "" {
		return map[string]string{"": c.JWTSecret}, "", nil
	}
	keys, err := ParseKeyPairs(c.JWTKeys)
	if err != nil {
		return nil, "", fmt.Errorf("JWT_KEYS: %w", err)
	}
	active, err := activeKID(keys, c.JWTActiveKID)
	if err != nil {
		return nil, "", fmt.Errorf("JWT_ACTIVE_KID: %w", err)
	}
	return keys, active, nil
}

// MessageKeyring returns base64 message keys by kid and the kid used to seal.
func (c Config) MessageKeyring() (map[string]string, string, error) {
	if c.MessageKeys == "" {
		return map[string]string{crypto.DefaultKeyID: c.MessageKey}, crypto.DefaultKeyID, nil
	}
	keys, err := ParseKeyPairs(c.MessageKeys)
	if err != nil {
		return nil, "", fmt.Errorf("MESSAGE_KEYS: %w", err)
	}
	active, err := activeKID(keys, c.MessageActiveKID)
	if err != nil {
		return nil, "", fmt.Errorf("MESSAGE_ACTIVE_KID: %w", err)
	}
	return keys, active, nil
}

// ParseKeyPairs parses "kid:value,kid:value". Values may contain ':'.
func ParseKeyPairs(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kid, val, ok := strings.Cut(part, ":")
		kid, val = strings.TrimSpace(kid), strings.TrimSpace(val)
		if !ok || kid == "" || val == "" {
			return nil, fmt.Errorf("malformed entry %q, want kid:value", part)
		}
		if _, dup := out[kid]; dup {
			return nil, fmt.Errorf("duplicate kid %q", kid)
		}
		out[kid] = val
	}
	if len(out) == 0 {
		return nil, errors.New("no keys")
	}
	return out, nil
}

// activeKID falls back to the only key when exactly one is configured.
func activeKID(keys map[string]string, kid string) (string, error) {
	if kid == "" {
		if len(keys) == 1 {
			for k := range keys {
				return k, nil
			}
		}
		return "", errors.New("required when more than one key is configured")
	}
	if _, ok := keys[kid]; !ok {
		return "", fmt.Errorf("unknown kid %q", kid)
	}
	return kid, nil
}
