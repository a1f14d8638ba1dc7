package clients

import (
	"context"
	"fmt"
	"time"

	"go-substrate-client/client"
	"go-substrate-client/events"
	"go-substrate-client/internal/config"
	"go-substrate-client/internal/connection"
	"go-substrate-client/internal/db/postgres"
	"go-substrate-client/internal/db/rocksdb"
	"go-substrate-client/internal/messages"
	"go-substrate-client/metadata"
	"go-substrate-client/types"

	"github.com/pkg/errors"
)

const stateTimeout = 10 * time.Second

type (
	eventArchive interface {
		InsertEvents(ctx context.Context, archived []postgres.ArchivedEvent) error
	}

	stateStore interface {
		Set(ctx context.Context, values map[string]interface{}) error
	}

	Orchestrator struct {
		configuration config.Config
		pgClient      *postgres.PostgresClient
		rdbClient     *rocksdb.RockClient
		conn          *connection.WsClient
		client        *client.Client
		archive       eventArchive
		state         stateStore
	}
)

// NewOrchestrator connects the databases and the node and loads the
// runtime metadata. Whatever was opened is closed again on failure.
func NewOrchestrator(ctx context.Context, configuration config.Config) (*Orchestrator, error) {
	messages.NewMessage(
		messages.LOG_LEVEL_INFO,
		"",
		nil,
		ORCHESTRATOR_INITIALIZING,
	).ConsoleLog()

	orchestrator := &Orchestrator{configuration: configuration}
	if err := orchestrator.connect(ctx); err != nil {
		orchestrator.Close()
		return nil, err
	}
	return orchestrator, nil
}

func (orchestrator *Orchestrator) connect(ctx context.Context) error {
	configuration := orchestrator.configuration

	// Postgres connect
	pgClient, err := postgres.Connect(ctx, configuration.PostgresConfig)
	if err != nil {
		return err
	}
	orchestrator.pgClient = pgClient
	eventRepo := postgres.NewEventRepo(pgClient)
	if err := eventRepo.CreateTable(ctx); err != nil {
		return err
	}
	stateRepo := postgres.NewStateRepo(pgClient)
	if err := stateRepo.CreateTable(ctx); err != nil {
		return err
	}
	orchestrator.archive = eventRepo
	orchestrator.state = stateRepo

	// Rocksdb metadata cache
	rdbClient, err := rocksdb.OpenRocksdb(configuration.RocksdbConfig)
	if err != nil {
		return err
	}
	orchestrator.rdbClient = rdbClient

	// Node connection
	conn, err := connection.Dial(ctx, configuration.ChainConfig.WsRpcEndpoint, types.SS58Prefix(configuration.ChainConfig.SS58Prefix))
	if err != nil {
		return err
	}
	orchestrator.conn = conn
	genesis, err := conn.GenesisHash(ctx)
	if err != nil {
		return err
	}
	if err := rdbClient.Bind(genesis[:]); err != nil {
		return err
	}

	c, err := client.New(ctx, conn, client.Options{
		Cache:   rdbClient,
		Genesis: configuration.ChainConfig.Genesis(),
	})
	if err != nil {
		return err
	}
	orchestrator.client = c
	return nil
}

// Run archives events until ctx ends or the node ends the stream
func (orchestrator *Orchestrator) Run(ctx context.Context) error {
	messages.NewMessage(
		messages.LOG_LEVEL_INFO,
		"",
		nil,
		ORCHESTRATOR_START,
	).ConsoleLog()

	watcher := orchestrator.configuration.WatcherConfig
	if watcher.PrintMetadata {
		fmt.Println(orchestrator.client.Metadata().Tree().String())
	}

	version := orchestrator.client.RuntimeVersion()
	orchestrator.saveState(map[string]interface{}{
		postgres.StateGenesisHash:    orchestrator.client.Genesis().Hex(),
		postgres.StateSpecName:       version.SpecName,
		postgres.StateSpecVersion:    version.SpecVersion,
		postgres.StateWatcherHealthy: true,
	})
	defer orchestrator.saveState(map[string]interface{}{postgres.StateWatcherHealthy: false})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	upgradesDone := make(chan struct{})
	if watcher.FollowUpgrades {
		go func() {
			defer close(upgradesDone)
			err := orchestrator.client.WatchRuntimeUpgrades(runCtx)
			if err != nil && runCtx.Err() == nil {
				messages.NewMessage(
					messages.LOG_LEVEL_WARNING,
					messages.GetComponent(orchestrator.Run),
					err,
					ORCHESTRATOR_UPGRADE_WATCH_FAILED,
				).ConsoleLog()
			}
		}()
	} else {
		close(upgradesDone)
	}

	messages.NewMessage(
		messages.LOG_LEVEL_INFO,
		"",
		nil,
		ORCHESTRATOR_START_PROCESSING,
		orchestrator.filterName(),
		version.SpecVersion,
	).ConsoleLog()

	err := orchestrator.archiveEvents(runCtx)
	cancel()
	<-upgradesDone
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// archiveEvents subscribes to events and resubscribes whenever the stream
// stops decoding because the runtime changed
func (orchestrator *Orchestrator) archiveEvents(ctx context.Context) error {
	for {
		sub, err := orchestrator.client.SubscribeEvents(ctx)
		if err != nil {
			return err
		}
		err = orchestrator.drain(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, events.ErrEndOfStream) {
			messages.NewMessage(
				messages.LOG_LEVEL_WARNING,
				"",
				sub.Err(),
				ORCHESTRATOR_STREAM_ENDED,
			).ConsoleLog()
			if cause := sub.Err(); cause != nil {
				return cause
			}
			return err
		}
		if !errors.Is(err, metadata.ErrStaleMetadata) && !orchestrator.refreshed(ctx) {
			return err
		}
		messages.NewMessage(
			messages.LOG_LEVEL_WARNING,
			"",
			err,
			ORCHESTRATOR_RESUBSCRIBING,
			orchestrator.specVersion(),
		).ConsoleLog()
	}
}

// refreshed reports whether the node runs a runtime the registry did not
// know yet, installing its metadata
func (orchestrator *Orchestrator) refreshed(ctx context.Context) bool {
	before := orchestrator.client.Registry().Load()
	after, err := orchestrator.client.UpdateMetadata(ctx)
	return err == nil && after != before
}

// drain archives blocks until the subscription fails
func (orchestrator *Orchestrator) drain(ctx context.Context, sub *events.Subscription) error {
	batchSize := orchestrator.configuration.WatcherConfig.BatchSize
	blocks := 0
	for {
		batch, err := sub.NextBatch(ctx)
		if err != nil {
			return err
		}

		specVersion := orchestrator.specVersion()
		archived := orchestrator.selectRecords(batch, specVersion)
		if err := orchestrator.archive.InsertEvents(ctx, archived); err != nil {
			messages.NewMessage(
				messages.LOG_LEVEL_ERROR,
				messages.GetComponent(orchestrator.drain),
				err,
				ORCHESTRATOR_FAILED_TO_ARCHIVE,
				batch.Block.Hex(),
			).ConsoleLog()
			return err
		}
		orchestrator.saveState(map[string]interface{}{
			postgres.StateLastProcessedBlock:     batch.Block.Hex(),
			postgres.StateLastProcessedTimestamp: time.Now().UTC().Format(time.RFC3339),
			postgres.StateSpecVersion:            specVersion,
		})

		blocks++
		if batchSize > 0 && blocks%batchSize == 0 {
			messages.NewMessage(
				messages.LOG_LEVEL_SUCCESS,
				"",
				nil,
				ORCHESTRATOR_FINISH_BATCH,
				batchSize,
				batch.Block.Hex(),
			).ConsoleLog()
		}
	}
}

// selectRecords keeps the records passing the configured filter, with their index
// in the block
func (orchestrator *Orchestrator) selectRecords(batch events.Batch, specVersion uint32) []postgres.ArchivedEvent {
	watcher := orchestrator.configuration.WatcherConfig
	var archived []postgres.ArchivedEvent
	for i, r := range batch.Records {
		if watcher.Pallet != "" && r.Pallet != watcher.Pallet {
			continue
		}
		if watcher.Event != "" && r.Name != watcher.Event {
			continue
		}
		archived = append(archived, postgres.ArchivedEvent{
			Block:       batch.Block,
			Index:       i,
			SpecVersion: specVersion,
			Record:      r,
		})
	}
	return archived
}

func (orchestrator *Orchestrator) specVersion() uint32 {
	return orchestrator.client.Registry().Load().Version.SpecVersion
}

func (orchestrator *Orchestrator) filterName() string {
	watcher := orchestrator.configuration.WatcherConfig
	switch {
	case watcher.Event != "":
		return watcher.Pallet + "." + watcher.Event
	case watcher.Pallet != "":
		return watcher.Pallet
	}
	return "all"
}

// saveState records progress; a failure is logged and archiving goes on
func (orchestrator *Orchestrator) saveState(values map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()
	if err := orchestrator.state.Set(ctx, values); err != nil {
		messages.NewMessage(
			messages.LOG_LEVEL_WARNING,
			messages.GetComponent(orchestrator.saveState),
			err,
			ORCHESTRATOR_FAILED_TO_SAVE_STATE,
		).ConsoleLog()
	}
}

func (orchestrator *Orchestrator) Close() {
	messages.NewMessage(
		messages.LOG_LEVEL_INFO,
		"",
		nil,
		ORCHESTRATOR_CLOSE,
	).ConsoleLog()

	if orchestrator.conn != nil {
		_ = orchestrator.conn.Close()
	}
	if orchestrator.rdbClient != nil {
		orchestrator.rdbClient.Close()
	}
	if orchestrator.pgClient != nil {
		orchestrator.pgClient.Close()
	}
}
