package config

type PostgresConfig struct {
	User     string `json:"postgres_user"`
	Password string `json:"postgres_password"`
	Host     string `json:"postgres_host"`
	Port     string `json:"postgres_port"`
	Db       string `json:"postgres_db"`
	Schema   string `json:"postgres_schema"`
	ConnPool int    `json:"postgres_conn_pool"`
}

type ChainConfig struct {
	WsRpcEndpoint string `json:"ws_rpc_endpoint"`
	// GenesisHash, when set, is checked against the node's genesis
	GenesisHash string `json:"genesis_hash"`
	SS58Prefix  uint16 `json:"ss58_prefix"`
}

type RocksdbConfig struct {
	RocksdbPath string `json:"rocksdb_path"`
}

type WatcherConfig struct {
	Pallet         string `json:"pallet"`
	Event          string `json:"event"`
	BatchSize      int    `json:"batch_size"`
	PrintMetadata  bool   `json:"print_metadata"`
	FollowUpgrades bool   `json:"follow_upgrades"`
}

type Config struct {
	Version        string         `json:"version"`
	ChainConfig    ChainConfig    `json:"chain_config"`
	RocksdbConfig  RocksdbConfig  `json:"rocksdb_config"`
	PostgresConfig PostgresConfig `json:"postgres_config"`
	WatcherConfig  WatcherConfig  `json:"watcher_config"`
}
