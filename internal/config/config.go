package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go-substrate-client/internal/messages"

	"github.com/itering/scale.go/utiles"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilePath = "config.json"
	envFileName           = ".env"
	defaultBatchSize      = 500

	EnvWsRpcEndpoint    = "WS_RPC_ENDPOINT"
	EnvPostgresPassword = "POSTGRES_PASSWORD"
	EnvRocksdbPath      = "ROCKSDB_PATH"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// LoadConfig tries to load the watcher config from a config file given as a parameter. If the filename is a nil
// string pointer, it defaults to a constant file path "config.json". A .env file next to the config file, and then
// the process environment, override the secrets and endpoints.
func LoadConfig(configFilePath *string) (Config, *messages.Message) {
	var (
		configPath    string
		watcherConfig Config
	)

	configPath = defaultConfigFilePath
	if configFilePath != nil {
		configPath = *configFilePath
	}
	messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CONFIG_STARTED_LOADING, configPath).ConsoleLog()

	configFile, err := os.Open(configPath)
	if err != nil {
		return watcherConfig, messages.NewMessage(messages.LOG_LEVEL_ERROR, messages.GetComponent(LoadConfig), err, messages.CONFIG_FAILED_TO_OPEN_FILE, configPath)
	}
	defer configFile.Close()

	jsonParser := json.NewDecoder(configFile)
	err = jsonParser.Decode(&watcherConfig)
	if err != nil {
		return watcherConfig, messages.NewMessage(messages.LOG_LEVEL_ERROR, messages.GetComponent(LoadConfig), err, messages.CONFIG_FAILED_TO_DECODE, configPath)
	}

	envPath := filepath.Join(filepath.Dir(configPath), envFileName)
	env, err := godotenv.Read(envPath)
	if err != nil {
		messages.NewMessage(messages.LOG_LEVEL_WARNING, "", nil, messages.CONFIG_NO_ENV_FILE, envPath).ConsoleLog()
		env = map[string]string{}
	}
	watcherConfig.applyEnv(env)

	if err := watcherConfig.Validate(); err != nil {
		return watcherConfig, messages.NewMessage(messages.LOG_LEVEL_ERROR, messages.GetComponent(LoadConfig), err, messages.CONFIG_FAILED_TO_DECODE, configPath)
	}

	messages.NewMessage(messages.LOG_LEVEL_SUCCESS, "", nil, messages.CONFIG_FINISHED_LOADING).ConsoleLog()
	return watcherConfig, nil
}

// applyEnv overrides config values. The process environment wins over the
// .env file values.
func (c *Config) applyEnv(file map[string]string) {
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := file[key]
		return v, ok && v != ""
	}

	for key, dst := range map[string]*string{
		EnvWsRpcEndpoint:    &c.ChainConfig.WsRpcEndpoint,
		EnvPostgresPassword: &c.PostgresConfig.Password,
		EnvRocksdbPath:      &c.RocksdbConfig.RocksdbPath,
	} {
		if v, ok := lookup(key); ok {
			*dst = v
			messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.CONFIG_ENV_OVERRIDE, key).ConsoleLog()
		}
	}

	if c.WatcherConfig.BatchSize <= 0 {
		c.WatcherConfig.BatchSize = defaultBatchSize
	}
}

// Validate checks the values the watcher cannot run without
func (c Config) Validate() error {
	if c.ChainConfig.WsRpcEndpoint == "" {
		return errors.Wrap(ErrInvalidConfig, "chain_config.ws_rpc_endpoint is empty")
	}
	if c.WatcherConfig.Event != "" && c.WatcherConfig.Pallet == "" {
		return errors.Wrap(ErrInvalidConfig, "watcher_config.event needs watcher_config.pallet")
	}
	if c.ChainConfig.GenesisHash != "" {
		if b := utiles.HexToBytes(c.ChainConfig.GenesisHash); len(b) != 32 {
			return errors.Wrapf(ErrInvalidConfig, "chain_config.genesis_hash %q is not a 32 byte hex string", c.ChainConfig.GenesisHash)
		}
	}
	return nil
}

// Genesis returns the configured genesis hash bytes, nil when unset
func (c ChainConfig) Genesis() []byte {
	if c.GenesisHash == "" {
		return nil
	}
	return utiles.HexToBytes(c.GenesisHash)
}
