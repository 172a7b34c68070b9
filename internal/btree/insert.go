package btree

import (
	"log/slog"

	"bptindex/internal/relation"
)

// splitResult reports whether a node split during a descent, and if so the
// separator key promoted to the parent plus the new right sibling's page id.
type splitResult struct {
	split    bool
	splitKey int32
	rightID  uint32
}

// InsertEntry implements §4.3: descend to the leaf that should hold key,
// insert (key, rid), split bottom-up as needed, and grow the tree by one
// level when the root itself splits.
func (t *Tree) InsertEntry(key int32, rid relation.RID) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}

	res, err := t.insertDescend(t.rootPageNo, t.rootIsLeaf, key, rid)
	if err != nil {
		return err
	}
	if !res.split {
		return nil
	}

	oldRoot := t.rootPageNo
	oldRootIsLeaf := t.rootIsLeaf

	newLevel := 1
	if !oldRootIsLeaf {
		p, err := t.bp.GetPage(oldRoot)
		if err != nil {
			return err
		}
		newLevel = asNonLeaf(p).Level() + 1
		if err := t.bp.Unpin(p, false); err != nil {
			return err
		}
	}

	newRootID := t.allocPage()
	newRootPage, err := t.bp.GetPage(newRootID)
	if err != nil {
		return err
	}
	newRoot := asNonLeaf(newRootPage)
	newRoot.reset(newLevel)
	newRoot.setPtrAt(0, oldRoot)
	newRoot.setPtrAt(1, res.rightID)
	newRoot.setKeyAt(0, res.splitKey)
	newRoot.setSize(1)
	if err := t.bp.Unpin(newRootPage, true); err != nil {
		return err
	}

	meta, err := t.bp.GetPage(metaPageID)
	if err != nil {
		return err
	}
	writeMeta(meta, t.relationName, t.attrByteOffset, t.attrType, newRootID, false)
	if err := t.bp.Unpin(meta, true); err != nil {
		return err
	}

	slog.Debug("btree: root split, tree grew a level", "oldRoot", oldRoot, "newRoot", newRootID, "splitKey", res.splitKey, "level", newLevel)

	t.rootPageNo = newRootID
	t.rootIsLeaf = false
	return nil
}

// insertDescend recursively inserts into the subtree rooted at pageID and
// reports whether that page split.
func (t *Tree) insertDescend(pageID uint32, isLeaf bool, key int32, rid relation.RID) (splitResult, error) {
	if isLeaf {
		return t.insertIntoLeaf(pageID, key, rid)
	}

	page, err := t.bp.GetPage(pageID)
	if err != nil {
		return splitResult{}, err
	}
	node := asNonLeaf(page)

	childIdx := node.findChildIdx(key)
	childID := node.PtrAt(childIdx)
	childIsLeaf := node.Level() == 1

	if err := t.bp.Unpin(page, false); err != nil {
		return splitResult{}, err
	}
	slog.Debug("btree: insert descent", "pageID", pageID, "childIdx", childIdx, "childPageID", childID, "childIsLeaf", childIsLeaf)

	childRes, err := t.insertDescend(childID, childIsLeaf, key, rid)
	if err != nil {
		return splitResult{}, err
	}
	if !childRes.split {
		return splitResult{}, nil
	}

	return t.insertIntoNonLeaf(pageID, childIdx, childRes.splitKey, childRes.rightID)
}

// insertIntoLeaf inserts (key, rid) into the leaf at pageID, splitting it if
// it is already at capacity L.
func (t *Tree) insertIntoLeaf(pageID uint32, key int32, rid relation.RID) (splitResult, error) {
	page, err := t.bp.GetPage(pageID)
	if err != nil {
		return splitResult{}, err
	}
	leaf := asLeaf(page)

	if leaf.Size() < L {
		pos := leaf.findInsertPos(key)
		leaf.insertAt(pos, key, rid)
		if err := t.bp.Unpin(page, true); err != nil {
			return splitResult{}, err
		}
		return splitResult{}, nil
	}

	rightID := t.allocPage()
	rightPage, err := t.bp.GetPage(rightID)
	if err != nil {
		_ = t.bp.Unpin(page, false)
		return splitResult{}, err
	}
	right := asLeaf(rightPage)
	right.reset()

	pos := leaf.findInsertPos(key)

	mid := L / 2
	if L%2 != 0 && pos > mid {
		mid++
	}

	leaf.moveRangeTo(right, mid, L)
	leaf.setSize(mid)
	right.setSize(L - mid)

	if pos > L/2 {
		localPos := pos - mid
		right.insertAt(localPos, key, rid)
	} else {
		leaf.insertAt(pos, key, rid)
	}

	right.SetRightSib(leaf.RightSib())
	leaf.SetRightSib(rightID)

	if err := t.bp.Unpin(rightPage, true); err != nil {
		_ = t.bp.Unpin(page, false)
		return splitResult{}, err
	}
	if err := t.bp.Unpin(page, true); err != nil {
		return splitResult{}, err
	}

	slog.Debug("btree: leaf split", "pageID", pageID, "rightID", rightID, "mid", mid, "splitKey", right.KeyAt(0))
	return splitResult{split: true, splitKey: right.KeyAt(0), rightID: rightID}, nil
}

// insertIntoNonLeaf inserts the promoted (splitKey, rightID) pair from a
// child split into the non-leaf at pageID, right after its childIdx-th
// pointer, splitting this node too if it is already at capacity M.
func (t *Tree) insertIntoNonLeaf(pageID uint32, childIdx int, splitKey int32, rightID uint32) (splitResult, error) {
	page, err := t.bp.GetPage(pageID)
	if err != nil {
		return splitResult{}, err
	}
	node := asNonLeaf(page)

	if node.Size() < M {
		node.insertKeyPtr(childIdx, splitKey, rightID)
		if err := t.bp.Unpin(page, true); err != nil {
			return splitResult{}, err
		}
		return splitResult{}, nil
	}

	newID := t.allocPage()
	newPage, err := t.bp.GetPage(newID)
	if err != nil {
		_ = t.bp.Unpin(page, false)
		return splitResult{}, err
	}
	newNode := asNonLeaf(newPage)
	newNode.reset(node.Level())

	// The node is already at capacity M keys / M+1 pointers. Merge the new
	// (splitKey, rightID) pair into a temporary M+1-key / M+2-pointer array
	// at its proper position, then split that array down the middle. Doing
	// the merge explicitly avoids off-by-one errors in the boundary case
	// where childIdx lands exactly on the split point.
	keys := make([]int32, M+1)
	ptrs := make([]uint32, M+2)

	for i := 0; i < childIdx; i++ {
		keys[i] = node.KeyAt(i)
	}
	keys[childIdx] = splitKey
	for i := childIdx; i < M; i++ {
		keys[i+1] = node.KeyAt(i)
	}

	for i := 0; i <= childIdx; i++ {
		ptrs[i] = node.PtrAt(i)
	}
	ptrs[childIdx+1] = rightID
	for i := childIdx + 1; i <= M; i++ {
		ptrs[i+1] = node.PtrAt(i)
	}

	mid := (M + 1) / 2
	promoted := keys[mid]

	for i := 0; i < mid; i++ {
		node.setKeyAt(i, keys[i])
	}
	for i := mid; i < M; i++ {
		node.setKeyAt(i, 0)
	}
	for i := 0; i <= mid; i++ {
		node.setPtrAt(i, ptrs[i])
	}
	for i := mid + 1; i <= M; i++ {
		node.setPtrAt(i, 0)
	}
	node.setSize(mid)

	for i := mid + 1; i <= M; i++ {
		newNode.setKeyAt(i-(mid+1), keys[i])
	}
	for i := mid + 1; i <= M+1; i++ {
		newNode.setPtrAt(i-(mid+1), ptrs[i])
	}
	newNode.setSize(M - mid)

	if err := t.bp.Unpin(newPage, true); err != nil {
		_ = t.bp.Unpin(page, false)
		return splitResult{}, err
	}
	if err := t.bp.Unpin(page, true); err != nil {
		return splitResult{}, err
	}

	slog.Debug("btree: non-leaf split", "pageID", pageID, "newID", newID, "mid", mid, "promoted", promoted)
	return splitResult{split: true, splitKey: promoted, rightID: newID}, nil
}
