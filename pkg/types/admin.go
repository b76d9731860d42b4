package types

// Metadata columns present in every data table, ahead of the user columns.
const (
	ColumnID                 = "id"
	ColumnRowETag            = "row_etag"
	ColumnSyncState          = "sync_state"
	ColumnConflictType       = "conflict_type"
	ColumnFilterType         = "filter_type"
	ColumnFilterValue        = "filter_value"
	ColumnFormID             = "form_id"
	ColumnLocale             = "locale"
	ColumnSavepointType      = "savepoint_type"
	ColumnSavepointTimestamp = "savepoint_timestamp"
	ColumnSavepointCreator   = "savepoint_creator"
)

// Sync states a row can be in.
const (
	SyncStateNewRow             = "new_row"
	SyncStateChanged            = "changed"
	SyncStateDeleted            = "deleted"
	SyncStateInConflict         = "in_conflict"
	SyncStateSynced             = "synced"
	SyncStateSyncedPendingFiles = "synced_pending_files"
)

// SyncStates lists the known sync states in lifecycle order.
func SyncStates() []string {
	return []string{
		SyncStateNewRow,
		SyncStateChanged,
		SyncStateDeleted,
		SyncStateInConflict,
		SyncStateSynced,
		SyncStateSyncedPendingFiles,
	}
}

// AdminColumns returns the fixed metadata columns in table order.
func AdminColumns() []PhysicalColumn {
	return []PhysicalColumn{
		{Name: ColumnID, Type: StorageText, Nullable: false, PrimaryKey: true},
		{Name: ColumnRowETag, Type: StorageText, Nullable: true},
		{Name: ColumnSyncState, Type: StorageText, Nullable: false},
		{Name: ColumnConflictType, Type: StorageInteger, Nullable: true},
		{Name: ColumnFilterType, Type: StorageText, Nullable: true},
		{Name: ColumnFilterValue, Type: StorageText, Nullable: true},
		{Name: ColumnFormID, Type: StorageText, Nullable: true},
		{Name: ColumnLocale, Type: StorageText, Nullable: true},
		{Name: ColumnSavepointType, Type: StorageText, Nullable: true},
		{Name: ColumnSavepointTimestamp, Type: StorageText, Nullable: false},
		{Name: ColumnSavepointCreator, Type: StorageText, Nullable: true},
	}
}

// AdminColumnNames returns the metadata column names in table order.
func AdminColumnNames() []string {
	cols := AdminColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// IsAdminColumn reports whether name is one of the metadata columns.
func IsAdminColumn(name string) bool {
	for _, c := range AdminColumns() {
		if c.Name == name {
			return true
		}
	}
	return false
}
