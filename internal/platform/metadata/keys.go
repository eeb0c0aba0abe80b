package metadata

// --- SQLite Keys ---
// 这些键用于 'metadata' 表的 'key' 列。
const (
	// LastSnapshotAtKey 记录最近一次成功的进度快照时间 (RFC3339)
	LastSnapshotAtKey = "last_snapshot_at"

	// SnapshotUsersKey 记录最近一次快照写入的访客数量
	SnapshotUsersKey = "snapshot_users"

	// CatalogImportedAtKey 记录最近一次导入书目的时间
	CatalogImportedAtKey = "catalog_imported_at"
)
