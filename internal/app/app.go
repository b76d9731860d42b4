// Package app wires the column engine, the backing store, the metadata
// stores and the definition archive into one Manager used by the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fieldtables/fieldtables/internal/archive"
	"github.com/fieldtables/fieldtables/internal/columns"
	"github.com/fieldtables/fieldtables/internal/config"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/metadata"
	"github.com/fieldtables/fieldtables/internal/storage"
	"github.com/fieldtables/fieldtables/internal/store"
)

// Manager owns the open database and archive storage of one data directory.
type Manager struct {
	cfg     *config.Config
	db      *store.SQLite
	storage storage.ObjectStorage
	archive *archive.Archive

	mu     sync.Mutex
	closed bool
}

// Open resolves and validates cfg, creates its directories and opens the
// database and archive storage.
func Open(ctx context.Context, cfg *config.Config) (*Manager, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	objStore, err := newObjectStorage(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
	}
	log.Printf("Archive storage initialized: type=%s", cfg.Archive.Type)

	return OpenWithStorage(cfg, objStore)
}

// OpenWithStorage opens the database of cfg and archives definitions to
// objStore. cfg must already be resolved.
func OpenWithStorage(cfg *config.Config, objStore storage.ObjectStorage) (*Manager, error) {
	db, err := store.Open(cfg.Database.Path, store.Options{
		BusyTimeout:    cfg.Database.BusyTimeout(),
		ReaderPoolSize: cfg.Database.ReaderPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Printf("Database opened: %s", db.Path())

	return &Manager{
		cfg:     cfg,
		db:      db,
		storage: objStore,
		archive: archive.New(objStore),
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.ArchiveConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case config.ArchiveLocal:
		return storage.NewLocalStorage(cfg.Path)
	case config.ArchiveS3:
		log.Printf("S3 Config: Bucket=%s, Region=%s, Endpoint=%s",
			cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Endpoint)
		return storage.NewS3Storage(ctx, cfg.S3.Bucket, storage.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			Prefix:       cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", cfg.Type)
	}
}

// Config returns the manager's configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// Close closes the database. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// stores bundles the metadata stores over one querier, usually a transaction.
type stores struct {
	tables  *metadata.TableStore
	columns *metadata.ColumnStore
	kvs     *metadata.KeyValueStore
}

func storesOver(q store.Querier) stores {
	return stores{
		tables:  metadata.NewTableStore(q),
		columns: metadata.NewColumnStore(q),
		kvs:     metadata.NewKeyValueStore(q),
	}
}

// withTx runs fn with metadata stores bound to one write transaction.
func (m *Manager) withTx(ctx context.Context, fn func(tx *sql.Tx, s stores) error) error {
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(tx, storesOver(tx))
	})
}

// requireTable fails with NOT_FOUND when tableID has no definition.
func requireTable(ctx context.Context, s stores, tableID string) (*metadata.TableDefinition, error) {
	if err := columns.ValidateTableID(tableID); err != nil {
		return nil, err
	}
	def, err := s.tables.Get(ctx, tableID)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, ftErrors.NewSchemaError(ftErrors.CodeNotFound, fmt.Sprintf("table %s does not exist", tableID))
	}
	if err != nil {
		return nil, ftErrors.NewStorageFailure(fmt.Sprintf("failed to read definition of %s", tableID), err)
	}
	return def, nil
}

// loadColumns reads the column records of tableID and rebuilds its
// OrderedColumns.
func loadColumns(ctx context.Context, s stores, tableID string) (*columns.OrderedColumns, error) {
	if _, err := requireTable(ctx, s, tableID); err != nil {
		return nil, err
	}
	records, err := s.columns.Get(ctx, tableID)
	if err != nil {
		return nil, ftErrors.NewStorageFailure(fmt.Sprintf("failed to read columns of %s", tableID), err)
	}
	return columns.NewOrderedColumns(tableID, records)
}
