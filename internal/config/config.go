package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "RIPPLE"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "ripple.db"
	defaultLogLevel          = "info"
	defaultTokenTTLMinutes   = 60
	defaultCVRCacheCapacity  = 1000
	defaultHeartbeatSeconds  = 30
)

// AppConfig captures runtime configuration for the sync API server.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LogLevel         string
	SigningSecret    string
	TokenTTLMinutes  int
	CVRCacheCapacity int
	HeartbeatSeconds int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("sync.cvr_cache_capacity", defaultCVRCacheCapacity)
	configViper.SetDefault("poke.heartbeat_seconds", defaultHeartbeatSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenTTLMinutes:  configViper.GetInt("auth.token_ttl_minutes"),
		CVRCacheCapacity: configViper.GetInt("sync.cvr_cache_capacity"),
		HeartbeatSeconds: configViper.GetInt("poke.heartbeat_seconds"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.CVRCacheCapacity <= 0 {
		return fmt.Errorf("sync.cvr_cache_capacity must be positive")
	}
	if c.HeartbeatSeconds <= 0 {
		return fmt.Errorf("poke.heartbeat_seconds must be positive")
	}
	return nil
}
