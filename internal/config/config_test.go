package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wormhole-tracker/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	env := map[string]string{
		"EVE_CLIENT_ID":     "client-123",
		"EVE_CALLBACK_URL":  "https://localhost:8443/callback",
		"EVE_SCOPES":        "esi-location.read_location.v1, esi-universe.read_structures.v1",
		"EVE_USER_AGENT":    "wormhole-tracker/test (contact@example.com)",
		"EVE_DATABASE_PATH": "/tmp/wormhole-test.db",
		"EVE_VAULT_ADDR":    "http://127.0.0.1:8200",
		"EVE_VAULT_TOKEN":   "root-token",
		"EVE_VAULT_KV_MOUNT": "secret",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"esi-location.read_location.v1", "esi-universe.read_structures.v1"}, cfg.EveScopes)
	assert.Equal(t, int64(60), cfg.RefreshSkewSeconds)
	assert.Equal(t, float64(0.2), cfg.Poll.JitterFactor)
}

func TestLoadRejectsMissingClientID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVE_CLIENT_ID", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsBadCallbackScheme(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVE_CALLBACK_URL", "ftp://example.com/callback")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsEmptyScopeList(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVE_SCOPES", "  ,  ,")

	_, err := config.Load()
	require.Error(t, err)
}
