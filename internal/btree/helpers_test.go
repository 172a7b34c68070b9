package btree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bptindex/internal/bufferpool"
	"bptindex/internal/relation"
	"bptindex/internal/storage"
)

// newTestTree builds an empty relation (12-byte records: a 4-byte key at
// offset 0 followed by 8 bytes of padding) and an index over it, sharing one
// buffer pool the way a real caller would.
func newTestTree(t *testing.T) (*Tree, *relation.Relation) {
	t.Helper()
	return newSizedTestTree(t, 4096)
}

// newSizedTestTree is newTestTree with a caller-chosen buffer pool capacity,
// for tests that need the pool small enough to surface a pin leak as
// ErrNoFreeFrame instead of having 4096 frames mask it.
func newSizedTestTree(t *testing.T, capacity int) (*Tree, *relation.Relation) {
	t.Helper()

	dir := t.TempDir()
	sm := storage.NewStorageManager()
	gp := bufferpool.NewGlobalPool(sm, capacity)

	relFS := storage.LocalFileSet{Dir: dir, Base: "rel"}
	rel := relation.Open("rel", 12, sm, relFS, gp.View(relFS), 0)

	idxFS := storage.LocalFileSet{Dir: dir, Base: "rel.0"}
	tree, _, err := btreeOpen(sm, idxFS, gp.View(idxFS), rel)
	require.NoError(t, err)

	return tree, rel
}

func btreeOpen(sm *storage.StorageManager, fs storage.LocalFileSet, bp bufferpool.Manager, rel *relation.Relation) (*Tree, string, error) {
	return Open(sm, fs, bp, rel, 0, AttrInteger)
}

func keyRecord(key int32) []byte {
	buf := make([]byte, 12)
	buf[0] = byte(key)
	buf[1] = byte(key >> 8)
	buf[2] = byte(key >> 16)
	buf[3] = byte(key >> 24)
	return buf
}

// insertKey appends a record with this key to rel and indexes it.
func insertKey(t *testing.T, tree *Tree, rel *relation.Relation, key int32) relation.RID {
	t.Helper()
	rid, err := rel.Insert(keyRecord(key))
	require.NoError(t, err)
	require.NoError(t, tree.InsertEntry(key, rid))
	return rid
}

// collectScan drains an already-started scan into a slice of keys, looking
// each rid back up in rel to recover the original key.
func collectScan(t *testing.T, tree *Tree, rel *relation.Relation) []int32 {
	t.Helper()
	var got []int32
	for {
		rid, err := tree.ScanNext()
		if err != nil {
			break
		}
		rec, err := rel.Get(rid)
		require.NoError(t, err)
		got = append(got, int32(rec[0])|int32(rec[1])<<8|int32(rec[2])<<16|int32(rec[3])<<24)
	}
	require.NoError(t, tree.EndScan())
	return got
}
