package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, pageID uint32) *Page {
	t.Helper()
	p := NewPage(make([]byte, PageSize))
	p.Reset(pageID)
	return p
}

func TestPage_ResetAndPageID(t *testing.T) {
	p := newTestPage(t, 7)
	require.Equal(t, uint32(7), p.PageID())
	require.Equal(t, 0, p.NumSlots())
}

func TestPage_InsertAndReadTuple(t *testing.T) {
	p := newTestPage(t, 1)

	slot, err := p.InsertTuple([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 0, slot)

	data, err := p.ReadTuple(slot)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
	require.Equal(t, 1, p.NumSlots())
}

func TestPage_InsertMultipleTuplesPreservesEach(t *testing.T) {
	p := newTestPage(t, 1)

	for i := 0; i < 10; i++ {
		_, err := p.InsertTuple([]byte{byte(i), byte(i + 1)})
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		data, err := p.ReadTuple(i)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i), byte(i + 1)}, data)
	}
}

func TestPage_InsertTupleNoSpace(t *testing.T) {
	p := newTestPage(t, 1)
	big := make([]byte, PageSize)

	_, err := p.InsertTuple(big)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestPage_ReadTupleOutOfRange(t *testing.T) {
	p := newTestPage(t, 1)
	_, err := p.ReadTuple(0)
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestPage_UpdateTupleInPlace(t *testing.T) {
	p := newTestPage(t, 1)
	slot, err := p.InsertTuple([]byte("abcdef"))
	require.NoError(t, err)

	require.NoError(t, p.UpdateTuple(slot, []byte("xyz")))
	data, err := p.ReadTuple(slot)
	require.NoError(t, err)
	require.Equal(t, []byte("xyzdef"), data)
}
