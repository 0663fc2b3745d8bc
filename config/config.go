package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; keys double as env vars.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	Issuer   string `mapstructure:"ISSUER"`

	// Storage selects the backing store for codes, tokens and clients:
	// "memory" for single-process use, "mongo" for anything shared.
	Storage     string `mapstructure:"STORAGE"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// RedisAddr, when set, enables the Redis access-token cache tier in
	// front of the token repository. Empty means in-process ttlcache.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	AuthCodeTTLMin      int `mapstructure:"AUTH_CODE_TTL_MIN"`
	AccessTokenTTLMin   int `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour int `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`
	SessionTTLMin       int `mapstructure:"SESSION_TTL_MIN"`
	UpstreamTimeoutSec  int `mapstructure:"UPSTREAM_TIMEOUT_SEC"`

	// IDTokenSigningKey signs the optional OIDC ID token (HS256). Opaque
	// access/refresh tokens are never signed.
	IDTokenSigningKey string `mapstructure:"ID_TOKEN_SIGNING_KEY"`

	// Delegated login providers. A provider with an empty client id is
	// not registered.
	FederationCallbackURL string `mapstructure:"FEDERATION_CALLBACK_URL"`
	GoogleClientID        string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	FacebookClientID      string `mapstructure:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret  string `mapstructure:"FACEBOOK_CLIENT_SECRET"`
}

// AuthCodeTTL returns the authorization code lifetime as a duration.
func (c *ServerConfig) AuthCodeTTL() time.Duration {
	return time.Duration(c.AuthCodeTTLMin) * time.Minute
}

// AccessTokenTTL returns the access token lifetime as a duration.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime as a duration.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

// SessionTTL returns the browser session lifetime as a duration.
func (c *ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

// UpstreamTimeout bounds every delegated-provider HTTP call.
func (c *ServerConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSec) * time.Second
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/signet/")
	v.AddConfigPath("$HOME/.signet")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ISSUER", "http://localhost:8080")
	v.SetDefault("STORAGE", "memory")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/signet_dev")
	v.SetDefault("MONGO_DB_NAME", "signet_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("AUTH_CODE_TTL_MIN", 10)
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 1440) // 24 hours
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 720)
	v.SetDefault("SESSION_TTL_MIN", 60)
	v.SetDefault("UPSTREAM_TIMEOUT_SEC", 10)
	v.SetDefault("ID_TOKEN_SIGNING_KEY", "a_very_secret_signing_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("FEDERATION_CALLBACK_URL", "http://localhost:8080/login")

	// Keys without a meaningful default still need registering so env-only
	// values survive Unmarshal.
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("FACEBOOK_CLIENT_ID", "")
	v.SetDefault("FACEBOOK_CLIENT_SECRET", "")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, env vars and defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
