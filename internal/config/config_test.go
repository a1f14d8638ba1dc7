package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
	"version": "1.0.0",
	"chain_config": {"ws_rpc_endpoint": "ws://127.0.0.1:9944", "ss58_prefix": 42},
	"rocksdb_config": {"rocksdb_path": "/data/metadata"},
	"postgres_config": {
		"postgres_user": "watcher",
		"postgres_password": "from-file",
		"postgres_host": "localhost",
		"postgres_port": "5432",
		"postgres_db": "events",
		"postgres_conn_pool": 4
	},
	"watcher_config": {"pallet": "Balances", "event": "Transfer"}
}`

func writeFiles(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return filepath.Join(dir, "config.json")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvWsRpcEndpoint, "")
	t.Setenv(EnvPostgresPassword, "")
	t.Setenv(EnvRocksdbPath, "")
	path := writeFiles(t, map[string]string{"config.json": sampleConfig})

	cfg, msg := LoadConfig(&path)
	require.Nil(t, msg)
	assert.Equal(t, "ws://127.0.0.1:9944", cfg.ChainConfig.WsRpcEndpoint)
	assert.Equal(t, uint16(42), cfg.ChainConfig.SS58Prefix)
	assert.Equal(t, "from-file", cfg.PostgresConfig.Password)
	assert.Equal(t, 4, cfg.PostgresConfig.ConnPool)
	assert.Equal(t, "Transfer", cfg.WatcherConfig.Event)
	assert.Equal(t, defaultBatchSize, cfg.WatcherConfig.BatchSize)
	assert.Nil(t, cfg.ChainConfig.Genesis())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvWsRpcEndpoint, "")
	t.Setenv(EnvPostgresPassword, "from-process")
	t.Setenv(EnvRocksdbPath, "")
	path := writeFiles(t, map[string]string{
		"config.json": sampleConfig,
		".env":        "WS_RPC_ENDPOINT=wss://rpc.example.org\nPOSTGRES_PASSWORD=from-dotenv\n",
	})

	cfg, msg := LoadConfig(&path)
	require.Nil(t, msg)
	assert.Equal(t, "wss://rpc.example.org", cfg.ChainConfig.WsRpcEndpoint)
	assert.Equal(t, "from-process", cfg.PostgresConfig.Password)
	assert.Equal(t, "/data/metadata", cfg.RocksdbConfig.RocksdbPath)
}

func TestLoadConfigErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	_, msg := LoadConfig(&missing)
	require.NotNil(t, msg)
	assert.True(t, os.IsNotExist(errors.Cause(msg.Error)))

	broken := writeFiles(t, map[string]string{"config.json": "{"})
	_, msg = LoadConfig(&broken)
	require.NotNil(t, msg)

	t.Setenv(EnvWsRpcEndpoint, "")
	noEndpoint := writeFiles(t, map[string]string{
		"config.json": strings.Replace(sampleConfig, "ws://127.0.0.1:9944", "", 1),
	})
	_, msg = LoadConfig(&noEndpoint)
	require.NotNil(t, msg)
	assert.True(t, errors.Is(msg.Error, ErrInvalidConfig))
}

func TestValidateGenesis(t *testing.T) {
	cfg := Config{ChainConfig: ChainConfig{WsRpcEndpoint: "ws://node", GenesisHash: "0x1234"}}
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))

	cfg.ChainConfig.GenesisHash = "0x" + strings.Repeat("ab", 32)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.ChainConfig.Genesis(), 32)
}
