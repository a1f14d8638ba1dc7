package postgres

import (
	"context"
	"fmt"

	"go-substrate-client/internal/config"
	"go-substrate-client/internal/messages"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	connStringFormat = "postgresql://%s:%s@%s:%s/%s?sslmode=disable&pool_max_conns=%d"
	defaultConnPool  = 4
)

type (
	// PostgresClient is the pool shared by the event archive and the
	// watcher state
	PostgresClient struct {
		Pool   *pgxpool.Pool
		schema string
	}
)

func connString(cfg config.PostgresConfig) string {
	pool := cfg.ConnPool
	if pool <= 0 {
		pool = defaultConnPool
	}
	return fmt.Sprintf(connStringFormat, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Db, pool)
}

// Connect opens the pool, checks it with a ping and creates the configured
// schema when missing
func Connect(ctx context.Context, cfg config.PostgresConfig) (*PostgresClient, error) {
	messages.NewMessage(messages.LOG_LEVEL_INFO, "", nil, messages.POSTGRES_CONNECTING, cfg.Db, cfg.Host, cfg.Port).ConsoleLog()

	poolConfig, err := pgxpool.ParseConfig(connString(cfg))
	if err != nil {
		return nil, connectFailure(err, messages.POSTGRES_FAILED_TO_PARSE_CONNECTION_STRING)
	}
	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, connectFailure(err, messages.POSTGRES_FAILED_TO_CONNECT)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, connectFailure(err, messages.POSTGRES_FAILED_TO_PING)
	}

	pc := &PostgresClient{Pool: pool, schema: cfg.Schema}
	if cfg.Schema != "" {
		schema := pgx.Identifier{cfg.Schema}.Sanitize()
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			pool.Close()
			return nil, connectFailure(err, messages.POSTGRES_FAILED_TO_CREATE_SCHEMA, schema)
		}
	}

	messages.NewMessage(messages.LOG_LEVEL_SUCCESS, "", nil, messages.POSTGRES_CONNECTED).ConsoleLog()
	return pc, nil
}

func connectFailure(err error, format string, args ...interface{}) error {
	return messages.NewMessage(messages.LOG_LEVEL_ERROR, messages.GetComponent(Connect), err, format, args...).Err()
}

func (pc *PostgresClient) Close() {
	pc.Pool.Close()
}
