package postgres

import (
	"context"
	"fmt"

	"go-substrate-client/events"
	"go-substrate-client/internal/messages"
	"go-substrate-client/types"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
)

const (
	tableEventName    = "events"
	colId             = "id"
	colBlockHash      = "block_hash"
	colSpecVersion    = "spec_version"
	colPhase          = "phase"
	colExtrinsicIndex = "extrinsic_index"
	colPallet         = "pallet"
	colEvent          = "event"
	colFields         = "fields"

	createEventsQuery = `CREATE TABLE IF NOT EXISTS %s (
	id text PRIMARY KEY,
	block_hash text NOT NULL,
	spec_version integer NOT NULL,
	phase text NOT NULL,
	extrinsic_index integer,
	pallet text NOT NULL,
	event text NOT NULL,
	fields text NOT NULL
)`
)

var ErrWrongRowCount = errors.New("postgres: copied row count differs from batch size")

var eventColumns = []string{
	colId,
	colBlockHash,
	colSpecVersion,
	colPhase,
	colExtrinsicIndex,
	colPallet,
	colEvent,
	colFields,
}

// EventRepo archives decoded event records
type EventRepo struct {
	client *PostgresClient
	table  pgx.Identifier
}

func NewEventRepo(client *PostgresClient) *EventRepo {
	table := pgx.Identifier{tableEventName}
	if client.schema != "" {
		table = pgx.Identifier{client.schema, tableEventName}
	}
	return &EventRepo{client: client, table: table}
}

// CreateTable creates the events table when it does not exist yet
func (repo *EventRepo) CreateTable(ctx context.Context) error {
	_, err := repo.client.Pool.Exec(ctx, fmt.Sprintf(createEventsQuery, repo.table.Sanitize()))
	if err != nil {
		return messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(NewEventRepo),
			err,
			messages.POSTGRES_FAILED_TO_CREATE_TABLE,
			repo.table.Sanitize(),
		).Err()
	}
	return nil
}

// ArchivedEvent is one record with its position in its block
type ArchivedEvent struct {
	Block       types.Hash
	Index       int
	SpecVersion uint32
	Record      events.Record
}

// InsertEvents copies records in a single transaction
func (repo *EventRepo) InsertEvents(ctx context.Context, archived []ArchivedEvent) error {
	rows := eventRows(archived)
	if len(rows) == 0 {
		return nil
	}

	tx, err := repo.client.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(NewEventRepo),
			err,
			messages.POSTGRES_FAILED_TO_START_TRANSACTION,
		).Err()
	}
	defer tx.Rollback(ctx)

	copyLen, err := tx.CopyFrom(
		ctx,
		repo.table,
		eventColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(NewEventRepo),
			err,
			messages.POSTGRES_FAILED_TO_COPY_FROM,
		).Err()
	}
	if copyLen != int64(len(rows)) {
		return messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(NewEventRepo),
			ErrWrongRowCount,
			messages.POSTGRES_WRONG_NUMBER_OF_COPIED_ROWS,
			copyLen,
			len(rows),
		).Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(NewEventRepo),
			err,
			messages.POSTGRES_FAILED_TO_COMMIT_TX,
		).Err()
	}
	return nil
}

// eventRows lays out archived in eventColumns order. Ids are the block hash
// and the record index, so a replayed block conflicts instead of duplicating.
func eventRows(archived []ArchivedEvent) [][]interface{} {
	rows := make([][]interface{}, 0, len(archived))
	for _, a := range archived {
		var extrinsicIndex interface{}
		if a.Record.Phase.Kind == events.PhaseApplyExtrinsic {
			extrinsicIndex = int32(a.Record.Phase.Extrinsic)
		}
		block := a.Block.Hex()
		rows = append(rows, []interface{}{
			fmt.Sprintf("%s-%d", block, a.Index),
			block,
			int32(a.SpecVersion),
			a.Record.Phase.String(),
			extrinsicIndex,
			a.Record.Pallet,
			a.Record.Name,
			a.Record.Value.String(),
		})
	}
	return rows
}
