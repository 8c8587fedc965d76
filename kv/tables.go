package kv

// Table names the logical column-families spec §6 lists under a single
// physical KV. pebble (like the original's chosen embedded stores) has no
// native column-family concept, so each table is a key prefix instead —
// the same approach the original's db modules use over rocksdb "trees".
type Table string

const (
	TableGlobal                  Table = "global"
	TableMigrations               Table = "migrations"
	TableObjects                  Table = "objects"
	TableObjectMetadata           Table = "object-metadata"
	TableObjectChunks             Table = "object-chunks"
	TableObjectChunkRefCount      Table = "object-chunk-refcount"
	TableObjectStatistics         Table = "object-statistics"
	TableBookmarks                Table = "bookmarks"
	TableCollectionItems          Table = "collection-items"
	TableCollectionItemLocators   Table = "collection-item-locators"
	TableSeries                   Table = "series"
	TableEditions                 Table = "editions"
	TableSeriesFreshnesses        Table = "series-freshnesses"
	TableSeriesOwners             Table = "series-owners"
	TableSubscriptions            Table = "subscriptions"
	TableRecentNonces             Table = "recent-nonces"
	TableAccessRights             Table = "access-rights"
	TableKVStore                  Table = "kv-store"
	TableHubs                     Table = "hubs"
)

// Key builds a table-prefixed key: "<table>\x00<name>". The NUL separator
// keeps prefix scans (NewIterator with PrefixUpperBound) from crossing
// table boundaries since NUL sorts below every other byte a name can start
// with after encoding.
func Key(t Table, name []byte) []byte {
	k := make([]byte, 0, len(t)+1+len(name))
	k = append(k, t...)
	k = append(k, 0)
	k = append(k, name...)
	return k
}

// PrefixUpperBound returns the smallest key greater than every key sharing
// prefix, suitable as the upperBound of NewIterator for a prefix scan.
func PrefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded above
}

// TablePrefix returns the scan bounds (lower, upper) covering every key in
// table t.
func TablePrefix(t Table) (lower, upper []byte) {
	lower = append([]byte(t), 0)
	upper = PrefixUpperBound(lower)
	return
}
