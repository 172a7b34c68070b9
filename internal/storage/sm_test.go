package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageManager_SaveAndLoadPage(t *testing.T) {
	dir := t.TempDir()
	fs := LocalFileSet{Dir: dir, Base: "idx"}
	sm := NewStorageManager()

	p := NewPage(make([]byte, PageSize))
	p.Reset(3)
	_, err := p.InsertTuple([]byte("payload"))
	require.NoError(t, err)

	require.NoError(t, sm.SavePage(fs, 3, p))

	loaded, err := sm.LoadPage(fs, 3)
	require.NoError(t, err)
	require.Equal(t, uint32(3), loaded.PageID())

	data, err := loaded.ReadTuple(0)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestStorageManager_LoadPageBeyondEOFIsZeroed(t *testing.T) {
	dir := t.TempDir()
	fs := LocalFileSet{Dir: dir, Base: "idx"}
	sm := NewStorageManager()

	p, err := sm.LoadPage(fs, 5)
	require.NoError(t, err)
	require.Equal(t, uint32(0), p.PageID())
	require.Equal(t, 0, p.NumSlots())
}

func TestStorageManager_CountPages(t *testing.T) {
	dir := t.TempDir()
	fs := LocalFileSet{Dir: dir, Base: "idx"}
	sm := NewStorageManager()

	n, err := sm.CountPages(fs)
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)

	for id := uint32(0); id < 3; id++ {
		p := NewPage(make([]byte, PageSize))
		p.Reset(id)
		require.NoError(t, sm.SavePage(fs, id, p))
	}

	n, err = sm.CountPages(fs)
	require.NoError(t, err)
	require.Equal(t, uint32(3), n)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	fs := LocalFileSet{Dir: dir, Base: "idx"}

	ok, err := Exists(fs)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, NewStorageManager().SavePage(fs, 0, func() *Page {
		p := NewPage(make([]byte, PageSize))
		p.Reset(0)
		return p
	}()))

	ok, err = Exists(fs)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, filepath.Join(dir, "idx"))
}
