package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bptindex/internal/storage"
)

func TestFileSetView_ScopesToOneFile(t *testing.T) {
	dir := t.TempDir()
	gp := NewGlobalPool(storage.NewStorageManager(), 4)

	fs := storage.LocalFileSet{Dir: dir, Base: "rel"}
	view := gp.View(fs)

	page, err := view.GetPage(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), page.PageID())

	page.Buf()[5] = 9
	require.NoError(t, view.Unpin(page, true))
	require.NoError(t, view.FlushAll())

	reloaded, err := storage.NewStorageManager().LoadPage(fs, 0)
	require.NoError(t, err)
	require.Equal(t, byte(9), reloaded.Buf()[5])
}

func TestFileSetView_FlushAllDoesNotTouchOtherFiles(t *testing.T) {
	dir := t.TempDir()
	gp := NewGlobalPool(storage.NewStorageManager(), 4)

	fsA := storage.LocalFileSet{Dir: dir, Base: "a"}
	fsB := storage.LocalFileSet{Dir: dir, Base: "b"}
	viewA := gp.View(fsA)
	viewB := gp.View(fsB)

	pageA, err := viewA.GetPage(0)
	require.NoError(t, err)
	pageA.Buf()[0] = 1
	require.NoError(t, viewA.Unpin(pageA, true))

	pageB, err := viewB.GetPage(0)
	require.NoError(t, err)
	pageB.Buf()[0] = 2
	require.NoError(t, viewB.Unpin(pageB, true))

	require.NoError(t, viewA.FlushAll())

	sm := storage.NewStorageManager()
	onDiskA, err := sm.LoadPage(fsA, 0)
	require.NoError(t, err)
	require.Equal(t, byte(1), onDiskA.Buf()[0])

	onDiskB, err := sm.LoadPage(fsB, 0)
	require.NoError(t, err)
	require.Equal(t, byte(0), onDiskB.Buf()[0])
}
