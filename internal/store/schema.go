package store

// Metadata tables live in the same SQLite database as the data tables, so a
// schema change and its metadata updates commit in one transaction.

// Names of the metadata tables.
const (
	TableDefinitionsTable  = "_table_definitions"
	ColumnDefinitionsTable = "_column_definitions"
	KeyValueStoreTable     = "_key_value_store"
)

// CreateTableDefinitionsSQL creates the per-table definition row.
// schema_etag fingerprints the current column records.
const CreateTableDefinitionsSQL = `
CREATE TABLE IF NOT EXISTS _table_definitions (
    table_id TEXT PRIMARY KEY,
    schema_etag TEXT,
    last_data_etag TEXT,
    last_sync_time TEXT NOT NULL DEFAULT '-1',
    created_at INTEGER NOT NULL
)`

// CreateColumnDefinitionsSQL creates the flat column record table.
// list_child_element_keys holds a JSON array.
const CreateColumnDefinitionsSQL = `
CREATE TABLE IF NOT EXISTS _column_definitions (
    table_id TEXT NOT NULL,
    element_key TEXT NOT NULL,
    element_name TEXT NOT NULL,
    element_type TEXT NOT NULL,
    list_child_element_keys TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (table_id, element_key)
)`

// CreateKeyValueStoreSQL creates the metadata key-value store.
// Values are JSON-encoded; type records the JSON kind for readers.
const CreateKeyValueStoreSQL = `
CREATE TABLE IF NOT EXISTS _key_value_store (
    table_id TEXT NOT NULL,
    partition TEXT NOT NULL,
    aspect TEXT NOT NULL,
    key TEXT NOT NULL,
    type TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (table_id, partition, aspect, key)
)`

// CreateKeyValueStoreIndexSQL speeds up per-partition listing.
const CreateKeyValueStoreIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_kvs_partition ON _key_value_store(table_id, partition)`

// AllSchemaSQL returns all SQL statements needed to initialize the metadata tables.
func AllSchemaSQL() []string {
	return []string{
		CreateTableDefinitionsSQL,
		CreateColumnDefinitionsSQL,
		CreateKeyValueStoreSQL,
		CreateKeyValueStoreIndexSQL,
	}
}
