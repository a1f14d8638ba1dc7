package rocksdb

import (
	"bytes"
	"encoding/binary"

	"go-substrate-client/internal/config"
	"go-substrate-client/internal/messages"

	"github.com/linxGnu/grocksdb"
	"github.com/pkg/errors"
)

var (
	metadataPrefix = []byte("metadata:")
	genesisKey     = []byte("genesis")
)

var ErrForeignChain = errors.New("rocksdb: cache belongs to another chain")

// RockClient caches runtime metadata blobs by spec version
type RockClient struct {
	db   *grocksdb.DB
	opts *grocksdb.Options
	ro   *grocksdb.ReadOptions
	wo   *grocksdb.WriteOptions
}

// OpenRocksdb opens, creating it when missing, the cache at the configured path
func OpenRocksdb(config config.RocksdbConfig) (*RockClient, error) {
	messages.NewMessage(
		messages.LOG_LEVEL_INFO,
		"",
		nil,
		messages.ROCKSDB_OPENING,
		config.RocksdbPath,
	).ConsoleLog()
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	db, err := grocksdb.OpenDb(opts, config.RocksdbPath)
	if err != nil {
		opts.Destroy()
		return nil, messages.NewMessage(
			messages.LOG_LEVEL_ERROR,
			messages.GetComponent(OpenRocksdb),
			err,
			messages.ROCKSDB_FAILED_TO_OPEN,
			config.RocksdbPath,
		).Err()
	}

	messages.NewMessage(
		messages.LOG_LEVEL_SUCCESS,
		"",
		nil,
		messages.ROCKSDB_OPENED,
	).ConsoleLog()

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(true)
	return &RockClient{
		db:   db,
		opts: opts,
		ro:   grocksdb.NewDefaultReadOptions(),
		wo:   wo,
	}, nil
}

// Bind ties the cache to the chain with the given genesis hash. A cache
// created for another chain is refused.
func (rc *RockClient) Bind(genesis []byte) error {
	stored, err := rc.get(genesisKey)
	if err != nil {
		return err
	}
	if stored == nil {
		return rc.db.Put(rc.wo, genesisKey, genesis)
	}
	if !bytes.Equal(stored, genesis) {
		return errors.Wrapf(ErrForeignChain, "cached genesis 0x%x", stored)
	}
	return nil
}

// GetMetadata returns the cached blob for specVersion, nil when absent
func (rc *RockClient) GetMetadata(specVersion uint32) ([]byte, error) {
	blob, err := rc.get(metadataKey(specVersion))
	if err != nil {
		return nil, messages.NewMessage(
			messages.LOG_LEVEL_WARNING,
			messages.GetComponent(rc.GetMetadata),
			err,
			messages.ROCKSDB_FAILED_TO_GET,
			specVersion,
		).Err()
	}
	return blob, nil
}

func (rc *RockClient) PutMetadata(specVersion uint32, blob []byte) error {
	if err := rc.db.Put(rc.wo, metadataKey(specVersion), blob); err != nil {
		return messages.NewMessage(
			messages.LOG_LEVEL_WARNING,
			messages.GetComponent(rc.PutMetadata),
			err,
			messages.ROCKSDB_FAILED_TO_PUT,
			specVersion,
		).Err()
	}
	messages.NewMessage(
		messages.LOG_LEVEL_INFO,
		"",
		nil,
		messages.ROCKSDB_CACHED_METADATA,
		specVersion,
		len(blob),
	).ConsoleLog()
	return nil
}

func (rc *RockClient) get(key []byte) ([]byte, error) {
	value, err := rc.db.Get(rc.ro, key)
	if err != nil {
		return nil, err
	}
	defer value.Free()
	if !value.Exists() {
		return nil, nil
	}
	returnedData := []byte{}
	returnedData = append(returnedData, value.Data()...)
	return returnedData, nil
}

// metadataKey orders entries by spec version
func metadataKey(specVersion uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, metadataPrefix...), specVersion)
}

func (rc *RockClient) Close() {
	rc.db.Close()
	rc.ro.Destroy()
	rc.wo.Destroy()
	rc.opts.Destroy()
}
