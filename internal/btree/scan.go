package btree

import (
	"log/slog"

	"bptindex/internal/relation"
)

// Op is a scan-range comparison operator. Only GT/GTE bound the low end and
// only LT/LTE bound the high end; mixing them the other way is ErrBadOpcodes.
type Op int

const (
	GT Op = iota
	GTE
	LT
	LTE
)

// scanState holds the single active range scan a Tree may run at a time:
// which leaf holds the next candidate entry and its index within that leaf.
// The leaf at pageID always carries a standing Pin of 1 while a scan is
// active — established by StartScan's descent, carried across ScanNext
// calls (each hop to a sibling moves the standing pin to the new leaf), and
// released only by EndScan.
type scanState struct {
	lowVal  int32
	lowOp   Op
	highVal int32
	highOp  Op

	pageID    uint32
	nextEntry int
	active    bool
}

func lowSatisfies(op Op, val, key int32) bool {
	switch op {
	case GT:
		return key > val
	case GTE:
		return key >= val
	default:
		return true
	}
}

func highSatisfies(op Op, val, key int32) bool {
	switch op {
	case LT:
		return key < val
	case LTE:
		return key <= val
	default:
		return true
	}
}

// StartScan implements §4.4: validate the operator pair and bounds, descend
// to the first leaf that could hold a qualifying entry, and position just
// before the first entry satisfying the low bound. It returns
// ErrNoSuchKeyFound if no entry in the tree satisfies the range at all.
func (t *Tree) StartScan(lowVal int32, lowOp Op, highVal int32, highOp Op) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}

	if lowOp != GT && lowOp != GTE {
		return ErrBadOpcodes
	}
	if highOp != LT && highOp != LTE {
		return ErrBadOpcodes
	}
	if lowVal > highVal {
		return ErrBadScanrange
	}

	_ = t.EndScan()

	pageID := t.rootPageNo
	isLeaf := t.rootIsLeaf
	for !isLeaf {
		page, err := t.bp.GetPage(pageID)
		if err != nil {
			return err
		}
		node := asNonLeaf(page)
		idx := node.findChildIdx(lowVal)
		childIsLeaf := node.Level() == 1
		childID := node.PtrAt(idx)
		if err := t.bp.Unpin(page, false); err != nil {
			return err
		}
		slog.Debug("btree: scan descent", "pageID", pageID, "childIdx", idx, "childPageID", childID, "childIsLeaf", childIsLeaf)
		pageID = childID
		isLeaf = childIsLeaf
	}

	page, err := t.bp.GetPage(pageID)
	if err != nil {
		return err
	}
	leaf := asLeaf(page)

	pos := 0
	for pos < leaf.Size() && !lowSatisfies(lowOp, lowVal, leaf.KeyAt(pos)) {
		pos++
	}

	for {
		if pos < leaf.Size() {
			if !highSatisfies(highOp, highVal, leaf.KeyAt(pos)) {
				if err := t.bp.Unpin(page, false); err != nil {
					return err
				}
				return ErrNoSuchKeyFound
			}
			t.scan = &scanState{lowVal: lowVal, lowOp: lowOp, highVal: highVal, highOp: highOp, pageID: pageID, nextEntry: pos, active: true}
			return nil
		}

		rightSib := leaf.RightSib()
		if err := t.bp.Unpin(page, false); err != nil {
			return err
		}
		if rightSib == 0 {
			return ErrNoSuchKeyFound
		}

		page, err = t.bp.GetPage(rightSib)
		if err != nil {
			return err
		}
		leaf = asLeaf(page)
		pageID = rightSib
		pos = 0
	}
}

// ScanNext implements §4.4: return the rid of the next qualifying entry,
// advancing across sibling leaves as needed, or ErrIndexScanCompleted once
// the high bound is exceeded or the chain runs out.
//
// s.pageID's leaf always carries the scan's standing pin (see scanState).
// The GetPage below re-pins it, temporarily bumping that page's count by
// one; firstPage tracks whether the page currently in hand is still that
// doubly-pinned page or a sibling picked up mid-call, which only ever
// carries the single standing pin established by its own GetPage.
func (t *Tree) ScanNext() (relation.RID, error) {
	if err := t.ensureOpen(); err != nil {
		return relation.RID{}, err
	}
	if t.scan == nil || !t.scan.active {
		return relation.RID{}, ErrScanNotInitialized
	}
	s := t.scan

	page, err := t.bp.GetPage(s.pageID)
	if err != nil {
		return relation.RID{}, err
	}
	leaf := asLeaf(page)
	firstPage := true

	for {
		if s.nextEntry < leaf.Size() {
			key := leaf.KeyAt(s.nextEntry)
			if !highSatisfies(s.highOp, s.highVal, key) {
				if firstPage {
					if err := t.bp.Unpin(page, false); err != nil {
						return relation.RID{}, err
					}
				}
				return relation.RID{}, ErrIndexScanCompleted
			}
			rid := leaf.RidAt(s.nextEntry)
			s.nextEntry++
			if firstPage {
				if err := t.bp.Unpin(page, false); err != nil {
					return relation.RID{}, err
				}
			}
			return rid, nil
		}

		rightSib := leaf.RightSib()
		if rightSib == 0 {
			if firstPage {
				if err := t.bp.Unpin(page, false); err != nil {
					return relation.RID{}, err
				}
			}
			return relation.RID{}, ErrIndexScanCompleted
		}

		// Crossing to a sibling: release the old leaf's standing pin (plus
		// this call's temporary re-pin, if it's still held) entirely — the
		// cursor is moving away from it for good.
		unpins := 1
		if firstPage {
			unpins = 2
		}
		for i := 0; i < unpins; i++ {
			if err := t.bp.Unpin(page, false); err != nil {
				return relation.RID{}, err
			}
		}

		page, err = t.bp.GetPage(rightSib)
		if err != nil {
			return relation.RID{}, err
		}
		slog.Debug("btree: scan crossed sibling", "fromPageID", s.pageID, "toPageID", rightSib)
		leaf = asLeaf(page)
		s.pageID = rightSib
		s.nextEntry = 0
		firstPage = false
	}
}

// EndScan implements §4.4's scan teardown: release the standing pin on the
// leaf the scan cursor currently holds (re-pinning it once via GetPage, then
// undoing both that pin and the standing pin with two Unpin calls) and clear
// the active scan. It is an error to call EndScan with no active scan,
// except that Close tolerates it.
func (t *Tree) EndScan() error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if t.scan == nil || !t.scan.active {
		return ErrScanNotInitialized
	}
	s := t.scan
	t.scan = nil

	page, err := t.bp.GetPage(s.pageID)
	if err != nil {
		return err
	}
	slog.Debug("btree: end scan, releasing standing pin", "pageID", s.pageID)
	if err := t.bp.Unpin(page, false); err != nil {
		return err
	}
	return t.bp.Unpin(page, false)
}
