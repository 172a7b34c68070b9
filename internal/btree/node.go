package btree

import (
	"bptindex/internal/relation"
	"bptindex/internal/storage"
	"bptindex/pkg/bx"
)

// Fixed on-disk field sizes. Keys are 32-bit signed integers; a RecordId is
// a PageId (4 bytes) plus a slot number (2 bytes).
const (
	keySize    = 4
	pageIDSize = 4
	ridSize    = pageIDSize + 2
	u32Size    = 4
)

// L and M are the leaf and non-leaf fan-out, derived once from the page
// size exactly as the page layout module specifies: the largest number of
// entries that still fits a page alongside the node's fixed header.
var (
	L = (storage.PageSize - pageIDSize - u32Size) / (keySize + ridSize)
	M = (storage.PageSize - u32Size - u32Size - pageIDSize) / (keySize + pageIDSize)
)

// LeafNode is a typed view over a pinned page's buffer:
//
//	[0:4)   size
//	[4:8)   rightSibPageNo
//	[8:8+4L)          keyArray[L]
//	[8+4L:8+10L)      ridArray[L]  (PageId uint32 + SlotId uint16 each)
//
// The view is only valid while the backing page stays pinned.
type LeafNode struct {
	buf []byte
}

func asLeaf(p *storage.Page) LeafNode { return LeafNode{buf: p.Buf()} }

const (
	leafSizeOff     = 0
	leafRightSibOff = 4
	leafKeysOff     = 8
)

var leafRidsOff = leafKeysOff + keySize*L

func (n LeafNode) Size() int            { return int(bx.U32At(n.buf, leafSizeOff)) }
func (n LeafNode) setSize(v int)        { bx.PutU32At(n.buf, leafSizeOff, uint32(v)) }
func (n LeafNode) RightSib() uint32     { return bx.U32At(n.buf, leafRightSibOff) }
func (n LeafNode) SetRightSib(v uint32) { bx.PutU32At(n.buf, leafRightSibOff, v) }

func (n LeafNode) keyOff(i int) int { return leafKeysOff + i*keySize }
func (n LeafNode) ridOff(i int) int { return leafRidsOff + i*ridSize }

func (n LeafNode) KeyAt(i int) int32       { return bx.I32(n.buf[n.keyOff(i):]) }
func (n LeafNode) setKeyAt(i int, k int32) { bx.PutU32At(n.buf, n.keyOff(i), uint32(k)) }

func (n LeafNode) RidAt(i int) relation.RID {
	o := n.ridOff(i)
	return relation.RID{PageID: bx.U32At(n.buf, o), SlotID: bx.U16At(n.buf, o+pageIDSize)}
}

func (n LeafNode) setRidAt(i int, r relation.RID) {
	o := n.ridOff(i)
	bx.PutU32At(n.buf, o, r.PageID)
	bx.PutU16At(n.buf, o+pageIDSize, r.SlotID)
}

// reset reinitializes the node as an empty leaf with no right sibling.
func (n LeafNode) reset() {
	for i := range n.buf {
		n.buf[i] = 0
	}
}

// findInsertPos returns the smallest index i with KeyAt(i) > key, or Size()
// if no such entry exists.
func (n LeafNode) findInsertPos(key int32) int {
	lo, hi := 0, n.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if n.KeyAt(mid) > key {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// insertAt shifts entries [i,Size) one slot right and writes (key,rid) at i.
func (n LeafNode) insertAt(i int, key int32, rid relation.RID) {
	size := n.Size()
	for k := size; k > i; k-- {
		n.setKeyAt(k, n.KeyAt(k-1))
		n.setRidAt(k, n.RidAt(k-1))
	}
	n.setKeyAt(i, key)
	n.setRidAt(i, rid)
	n.setSize(size + 1)
}

// moveRangeTo copies entries [from,to) into dst starting at position 0 and
// zeroes the vacated source slots. Caller updates both sizes afterward.
func (n LeafNode) moveRangeTo(dst LeafNode, from, to int) {
	for k := from; k < to; k++ {
		dst.setKeyAt(k-from, n.KeyAt(k))
		dst.setRidAt(k-from, n.RidAt(k))
		n.setKeyAt(k, 0)
		n.setRidAt(k, relation.RID{})
	}
}

// NonLeafNode is a typed view over a pinned page's buffer:
//
//	[0:4)    size
//	[4:8)    level
//	[8:8+4(M+1))             pageNoArray[M+1]
//	[8+4(M+1):8+4(M+1)+4M)   keyArray[M]
type NonLeafNode struct {
	buf []byte
}

func asNonLeaf(p *storage.Page) NonLeafNode { return NonLeafNode{buf: p.Buf()} }

const (
	nlSizeOff  = 0
	nlLevelOff = 4
	nlPtrOff   = 8
)

var nlKeyOff = nlPtrOff + pageIDSize*(M+1)

func (n NonLeafNode) Size() int     { return int(bx.U32At(n.buf, nlSizeOff)) }
func (n NonLeafNode) setSize(v int) { bx.PutU32At(n.buf, nlSizeOff, uint32(v)) }
func (n NonLeafNode) Level() int    { return int(bx.U32At(n.buf, nlLevelOff)) }

func (n NonLeafNode) keyOff(i int) int { return nlKeyOff + i*keySize }
func (n NonLeafNode) ptrOff(i int) int { return nlPtrOff + i*pageIDSize }

func (n NonLeafNode) KeyAt(i int) int32        { return bx.I32(n.buf[n.keyOff(i):]) }
func (n NonLeafNode) setKeyAt(i int, k int32)  { bx.PutU32At(n.buf, n.keyOff(i), uint32(k)) }
func (n NonLeafNode) PtrAt(i int) uint32       { return bx.U32At(n.buf, n.ptrOff(i)) }
func (n NonLeafNode) setPtrAt(i int, v uint32) { bx.PutU32At(n.buf, n.ptrOff(i), v) }

// reset reinitializes the node as an empty non-leaf at the given level.
func (n NonLeafNode) reset(level int) {
	for i := range n.buf {
		n.buf[i] = 0
	}
	bx.PutU32At(n.buf, nlLevelOff, uint32(level))
}

// findChildIdx returns the smallest index i with KeyAt(i) > key, or Size()
// if no such entry exists — the child at that index holds key's subtree.
func (n NonLeafNode) findChildIdx(key int32) int {
	lo, hi := 0, n.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if n.KeyAt(mid) > key {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// insertKeyPtr inserts separator key at position j and child pointer ptr at
// position j+1, shifting keys [j,Size) and pointers [j+1,Size+1) right by one.
func (n NonLeafNode) insertKeyPtr(j int, key int32, ptr uint32) {
	size := n.Size()
	for k := size; k > j; k-- {
		n.setKeyAt(k, n.KeyAt(k-1))
	}
	for k := size + 1; k > j+1; k-- {
		n.setPtrAt(k, n.PtrAt(k-1))
	}
	n.setKeyAt(j, key)
	n.setPtrAt(j+1, ptr)
	n.setSize(size + 1)
}
