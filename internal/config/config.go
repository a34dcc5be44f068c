// Package config loads the tracker's process configuration from
// environment variables: plain os.Getenv reads plus manual validation,
// rather than a configuration framework. github.com/spf13/viper appears
// in two unrelated go.mod files elsewhere but has no actual call site
// anywhere, so there's nothing to ground a framework-based loader on.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wormhole-tracker/internal/authsvc"
	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/internal/ingestor"
)

// Config is every environment-sourced setting the process needs at
// startup.
type Config struct {
	EveClientID    string
	EveCallbackURL string
	EveScopes      []string
	EveUserAgent   string

	RefreshSkewSeconds int64

	Poll ingestor.LocationPollConfig

	DatabasePath string

	VaultAddr    string
	VaultToken   string
	VaultKvMount string
}

// Load reads and validates every recognized environment variable.
func Load() (Config, error) {
	cfg := Config{
		EveClientID:    os.Getenv("EVE_CLIENT_ID"),
		EveCallbackURL: os.Getenv("EVE_CALLBACK_URL"),
		EveUserAgent:   os.Getenv("EVE_USER_AGENT"),
		DatabasePath:   os.Getenv("EVE_DATABASE_PATH"),
		VaultAddr:      os.Getenv("EVE_VAULT_ADDR"),
		VaultToken:     os.Getenv("EVE_VAULT_TOKEN"),
		VaultKvMount:   os.Getenv("EVE_VAULT_KV_MOUNT"),
		Poll:           ingestor.DefaultLocationPollConfig(),
	}

	if cfg.EveClientID == "" {
		return Config{}, configError("EVE_CLIENT_ID is required")
	}
	if cfg.EveCallbackURL == "" {
		return Config{}, configError("EVE_CALLBACK_URL is required")
	}
	if !strings.HasPrefix(cfg.EveCallbackURL, "http://") && !strings.HasPrefix(cfg.EveCallbackURL, "https://") {
		return Config{}, configError("EVE_CALLBACK_URL must include an http(s) scheme")
	}
	if cfg.EveUserAgent == "" {
		return Config{}, configError("EVE_USER_AGENT is required")
	}
	if cfg.DatabasePath == "" {
		return Config{}, configError("EVE_DATABASE_PATH is required")
	}
	if cfg.VaultAddr == "" {
		return Config{}, configError("EVE_VAULT_ADDR is required")
	}
	if cfg.VaultToken == "" {
		return Config{}, configError("EVE_VAULT_TOKEN is required")
	}
	if cfg.VaultKvMount == "" {
		return Config{}, configError("EVE_VAULT_KV_MOUNT is required")
	}

	rawScopes := os.Getenv("EVE_SCOPES")
	if rawScopes == "" {
		return Config{}, configError("EVE_SCOPES is required")
	}
	for _, scope := range strings.Split(rawScopes, ",") {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		cfg.EveScopes = append(cfg.EveScopes, scope)
	}
	if len(cfg.EveScopes) == 0 {
		return Config{}, configError("EVE_SCOPES must contain at least one scope")
	}

	skew, err := intEnvOrDefault("EVE_REFRESH_SKEW_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.RefreshSkewSeconds = skew

	baseIntervalSeconds, err := intEnvOrDefault("EVE_POLL_BASE_INTERVAL_SECONDS", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.Poll.BaseInterval = time.Duration(baseIntervalSeconds) * time.Second

	jitterFactor, err := floatEnvOrDefault("EVE_POLL_JITTER_FACTOR", 0.2)
	if err != nil {
		return Config{}, err
	}
	cfg.Poll.JitterFactor = jitterFactor

	backoffInitialSeconds, err := intEnvOrDefault("EVE_POLL_API_FAILURE_BACKOFF_INITIAL_SECONDS", 1)
	if err != nil {
		return Config{}, err
	}
	cfg.Poll.ApiFailureBackoffInitial = time.Duration(backoffInitialSeconds) * time.Second

	backoffMaxSeconds, err := intEnvOrDefault("EVE_POLL_API_FAILURE_BACKOFF_MAX_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.Poll.ApiFailureBackoffMax = time.Duration(backoffMaxSeconds) * time.Second

	return cfg, nil
}

// EsiClientConfig adapts Config into the shape authsvc.PKCEClient
// expects.
func (c Config) EsiClientConfig() authsvc.EsiClientConfig {
	return authsvc.EsiClientConfig{
		ClientID:    c.EveClientID,
		CallbackURL: c.EveCallbackURL,
		Scopes:      c.EveScopes,
		UserAgent:   c.EveUserAgent,
	}
}

func configError(msg string) error {
	return errkind.New("config.Load", errkind.ConfigInvalid, msg)
}

func intEnvOrDefault(name string, def int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, configError(fmt.Sprintf("%s must be an integer: %v", name, err))
	}
	return value, nil
}

func floatEnvOrDefault(name string, def float64) (float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, configError(fmt.Sprintf("%s must be a number: %v", name, err))
	}
	return value, nil
}
