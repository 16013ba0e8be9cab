package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for key, val := range map[string]string{
		"PROGRAM_SUBGRAPH_URL":     "http://programs",
		"DELEGATION_SUBGRAPH_URL":  "http://delegations",
		"SCORE_API_URL":            "http://score",
		"SPACE_HUB_URL":            "http://hub",
		"SPACE_ID":                 "test.eth",
		"RPC_URL":                  "http://rpc",
		"ETH_RPC_URL":              "http://ethrpc",
		"TOKEN_ADDRESS":            "0xA000000000000000000000000000000000000001",
		"L1_TOKEN_ADDRESS":         "0xA000000000000000000000000000000000000002",
		"PROGRAM_MANAGER_ADDRESS":  "0xA000000000000000000000000000000000000003",
		"COMMUNITY_CHARGE_ADDRESS": "0xA000000000000000000000000000000000000004",
		"VESTING_TREASURY_ADDRESS": "0xA000000000000000000000000000000000000005",
		"DAO_TREASURY_ADDRESS":     "0xA000000000000000000000000000000000000006",
		"FOUNDATION_ADDRESS":       "0xA000000000000000000000000000000000000007",
	} {
		t.Setenv(key, val)
	}
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCORES_REFRESH_INTERVAL", "30m")
	t.Setenv("SCORE_CHUNK_SIZE", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, 30*time.Minute, cfg.ScoresRefreshInterval)
	assert.Equal(t, 100, cfg.ScoreChunkSize)
	// Addresses are normalized to lowercase.
	assert.Equal(t, "0xa000000000000000000000000000000000000001", cfg.TokenAddress)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SPACE_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPACE_ID")
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":4000"
scoreChunkSize: 250
scoresRefreshInterval: 2h
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADDR", ":5000")

	cfg, err := Load()
	require.NoError(t, err)

	// Env beats file, file beats default.
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, 250, cfg.ScoreChunkSize)
	assert.Equal(t, 2*time.Hour, cfg.ScoresRefreshInterval)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "s3")

	_, err := Load()
	require.Error(t, err)
}
