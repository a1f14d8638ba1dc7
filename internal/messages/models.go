package messages

type LogLevel string

const (
	// config
	CONFIG_NO_CUSTOM_PATH_SPECIFIED = "No config file path specified with -c, -configfile. Using default path."
	CONFIG_STARTED_LOADING          = "The watcher configuration is loaded from %s"
	CONFIG_FAILED_TO_OPEN_FILE      = "Failed to open config file %s"
	CONFIG_FAILED_TO_DECODE         = "Failed to decode config file %s"
	CONFIG_NO_ENV_FILE              = "No %s file found, using the config file values"
	CONFIG_ENV_OVERRIDE             = "Config value %s overridden from the environment"
	CONFIG_FINISHED_LOADING         = "The watcher configuration successfully loaded"

	// rocksdb
	ROCKSDB_OPENING         = "Opening rocksdb metadata cache at %s"
	ROCKSDB_FAILED_TO_OPEN  = "Failed to open rocksdb metadata cache at %s"
	ROCKSDB_OPENED          = "Successfully opened rocksdb metadata cache"
	ROCKSDB_FAILED_TO_GET   = "Failed to read cached metadata for spec version %d"
	ROCKSDB_FAILED_TO_PUT   = "Failed to cache metadata for spec version %d"
	ROCKSDB_CACHED_METADATA = "Cached metadata for spec version %d (%d bytes)"

	// postgres
	POSTGRES_CONNECTING                        = "Connecting to postgres database %s at %s:%s"
	POSTGRES_CONNECTED                         = "Successfully connected to postgres instance"
	POSTGRES_FAILED_TO_PARSE_CONNECTION_STRING = "Failed to parse postgres connection string"
	POSTGRES_FAILED_TO_CONNECT                 = "Failed to connect to postgres database"
	POSTGRES_FAILED_TO_PING                    = "Failed to ping postgres database instance"
	POSTGRES_FAILED_TO_CREATE_TABLE            = "Failed to create table %s"
	POSTGRES_FAILED_TO_CREATE_SCHEMA           = "Failed to create schema %s"
	POSTGRES_FAILED_TO_START_TRANSACTION       = "Failed to start postgres transaction"
	POSTGRES_FAILED_TO_COPY_FROM               = "Postgres failed to copy from rows"
	POSTGRES_WRONG_NUMBER_OF_COPIED_ROWS       = "Postgres copied %d rows out of %d"
	POSTGRES_FAILED_TO_COMMIT_TX               = "Failed to commit postgres transaction"
	POSTGRES_FAILED_TO_UPDATE_STATE            = "Failed to update watcher state"
	POSTGRES_FAILED_JSON_MARSHAL               = "Failed to marshal %s into a JSON object"

	// node connection
	CONNECTION_DIALING            = "Connecting to node at %s"
	CONNECTION_DIALED             = "Successfully connected to node"
	CONNECTION_FAILED_TO_DIAL     = "Failed to connect to node at %s"
	CONNECTION_READ_FAILED        = "Node connection read loop stopped"
	CONNECTION_FAILED_TO_DECODE   = "Failed to decode node message"
	CONNECTION_UNKNOWN_MESSAGE    = "Dropping notification for unknown subscription %s"
	CONNECTION_FAILED_TO_CLOSE    = "Failed to close node connection"
	CONNECTION_FAILED_UNSUBSCRIBE = "Failed to unsubscribe %s"

	// client
	CLIENT_BOOTSTRAPPED             = "Connected to %s, genesis %s"
	CLIENT_METADATA_LOADED          = "Loaded metadata for spec version %d (generation %d)"
	CLIENT_METADATA_CACHE_HIT       = "Metadata for spec version %d found in cache"
	CLIENT_METADATA_CACHE_FAILED    = "Metadata cache unavailable for spec version %d"
	CLIENT_RUNTIME_UPGRADE          = "Runtime upgraded from spec version %d to %d"
	CLIENT_FAILED_TO_UPDATE_META    = "Failed to update metadata after runtime upgrade to spec version %d"
	CLIENT_UPGRADE_WATCH_ENDED      = "Runtime upgrade watch ended"
	CLIENT_EXTRINSIC_SUBMITTED      = "Submitted extrinsic %s"
	CLIENT_EXTRINSIC_IN_BLOCK       = "Extrinsic %s included in block %s at index %d"
	CLIENT_EXTRINSIC_DISPATCH_ERROR = "Extrinsic %s failed to dispatch"
)

const (
	LOG_LEVEL_INFO    LogLevel = "INFO"
	LOG_LEVEL_ERROR   LogLevel = "ERROR"
	LOG_LEVEL_WARNING LogLevel = "WARNING"
	LOG_LEVEL_SUCCESS LogLevel = "SUCCESS"
)

type Message struct {
	LogLevel       LogLevel
	Component      string
	Error          error
	FormatString   string
	AdditionalInfo []interface{}
}
