package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "auther", cfg.Database.Name)
	assert.Equal(t, 200, cfg.Policy.ScriptTimeoutMs)
	assert.Equal(t, 30, cfg.Policy.TestRatePerMinute)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POLICY_SCRIPT_TIMEOUT_MS", "500")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Policy.ScriptTimeoutMs)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadTestConfig(t *testing.T) {
	cfg := LoadTestConfig()

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "auther_test", cfg.Database.Name)
	assert.NotZero(t, cfg.Policy.ScriptTimeoutMs)
	assert.NotZero(t, cfg.Policy.TestRatePerMinute)
}
