package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-substrate-client/internal/messages"

	"github.com/jackc/pgx/v4"
)

const (
	tableStateName = "_metadata"

	createStateQuery = `CREATE TABLE IF NOT EXISTS %s (
	key text PRIMARY KEY,
	value jsonb,
	"createdAt" timestamptz NOT NULL,
	"updatedAt" timestamptz NOT NULL
)`
	upsertStateQuery = `INSERT INTO %s(key, value, "createdAt", "updatedAt") VALUES ($1, $2, $3, $3)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, "updatedAt" = EXCLUDED."updatedAt"`

	// state keys
	StateGenesisHash            = "genesisHash"
	StateSpecName               = "specName"
	StateSpecVersion            = "specVersion"
	StateLastProcessedBlock     = "lastProcessedBlock"
	StateLastProcessedTimestamp = "lastProcessedTimestamp"
	StateWatcherHealthy         = "watcherHealthy"
)

// StateRepo keeps the watcher's progress as JSON values by key
type StateRepo struct {
	client *PostgresClient
	table  pgx.Identifier
}

func NewStateRepo(client *PostgresClient) *StateRepo {
	table := pgx.Identifier{tableStateName}
	if client.schema != "" {
		table = pgx.Identifier{client.schema, tableStateName}
	}
	return &StateRepo{client: client, table: table}
}

func (repo *StateRepo) CreateTable(ctx context.Context) error {
	_, err := repo.client.Pool.Exec(ctx, fmt.Sprintf(createStateQuery, repo.table.Sanitize()))
	if err != nil {
		return messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(NewStateRepo),
			err,
			messages.POSTGRES_FAILED_TO_CREATE_TABLE,
			repo.table.Sanitize(),
		).Err()
	}
	return nil
}

// Set upserts every key of values in one round trip
func (repo *StateRepo) Set(ctx context.Context, values map[string]interface{}) error {
	batch, err := repo.upsertBatch(values, time.Now().UTC())
	if err != nil {
		return err
	}

	results := repo.client.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range values {
		if _, err := results.Exec(); err != nil {
			return messages.NewMessage(
				messages.LOG_LEVEL_ERROR,
				messages.GetComponent(NewStateRepo),
				err,
				messages.POSTGRES_FAILED_TO_UPDATE_STATE,
			).Err()
		}
	}
	return nil
}

func (repo *StateRepo) upsertBatch(values map[string]interface{}, now time.Time) (*pgx.Batch, error) {
	query := fmt.Sprintf(upsertStateQuery, repo.table.Sanitize())
	batch := &pgx.Batch{}
	for key, value := range values {
		jsonValue, err := json.Marshal(value)
		if err != nil {
			return nil, messages.NewMessage(
				messages.LOG_LEVEL_ERROR,
				messages.GetComponent(NewStateRepo),
				err,
				messages.POSTGRES_FAILED_JSON_MARSHAL,
				key,
			).Err()
		}
		batch.Queue(query, key, jsonValue, now)
	}
	return batch, nil
}
