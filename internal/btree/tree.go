// Package btree implements a disk-resident B+ tree index: fixed-capacity
// leaf and non-leaf nodes laid directly over page buffers, recursive
// insertion with bottom-up split propagation, and range scans that descend
// to the first qualifying leaf and then walk the sibling chain. Every page
// access goes through the buffer manager in package bufferpool; the tree
// itself is single-threaded and holds no locks.
package btree

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"bptindex/internal/bufferpool"
	"bptindex/internal/relation"
	"bptindex/internal/storage"
	"bptindex/pkg/bx"
)

// Page 0 is always the meta page; page 1 is the root leaf allocated at
// creation time. Allocation starts at 2 for everything split afterward.
const (
	metaPageID = 0
	rootPageID = 1
)

// Tree is a client handle onto one persisted B+ tree index.
type Tree struct {
	sm *storage.StorageManager
	fs storage.LocalFileSet
	bp bufferpool.Manager

	relationName   string
	attrByteOffset int32
	attrType       AttrType

	rootPageNo uint32
	rootIsLeaf bool
	nextPageID uint32

	scan *scanState

	closed atomic.Bool
}

// Open implements §4.2: it creates a new index file and loads every tuple of
// rel, or reopens an existing one and validates its metadata against the
// caller-supplied attrByteOffset/attrType.
func Open(sm *storage.StorageManager, fs storage.LocalFileSet, bp bufferpool.Manager, rel *relation.Relation, attrByteOffset int32, attrType AttrType) (*Tree, string, error) {
	indexName := IndexName(rel.Name, attrByteOffset)

	exists, err := storage.Exists(fs)
	if err != nil {
		return nil, indexName, err
	}

	t := &Tree{
		sm:             sm,
		fs:             fs,
		bp:             bp,
		relationName:   rel.Name,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
	}

	if !exists {
		if err := t.create(rel); err != nil {
			if rmErr := storage.RemoveAllSegments(fs); rmErr != nil {
				slog.Warn("btree: cleanup after failed load also failed", "indexName", indexName, "err", rmErr)
			}
			return nil, indexName, err
		}
		return t, indexName, nil
	}

	if err := t.reopen(); err != nil {
		return nil, indexName, err
	}
	return t, indexName, nil
}

func (t *Tree) create(rel *relation.Relation) error {
	meta, err := t.bp.GetPage(metaPageID)
	if err != nil {
		return err
	}
	root, err := t.bp.GetPage(rootPageID)
	if err != nil {
		_ = t.bp.Unpin(meta, false)
		return err
	}

	asLeaf(root).reset()
	writeMeta(meta, t.relationName, t.attrByteOffset, t.attrType, rootPageID, true)

	if err := t.bp.Unpin(root, true); err != nil {
		_ = t.bp.Unpin(meta, false)
		return err
	}
	if err := t.bp.Unpin(meta, true); err != nil {
		return err
	}

	t.rootPageNo = rootPageID
	t.rootIsLeaf = true
	t.nextPageID = rootPageID + 1

	scanner, err := rel.Scan()
	if err != nil {
		return err
	}

	var rid relation.RID
	for {
		if err := scanner.ScanNext(&rid); err != nil {
			if errors.Is(err, relation.ErrEndOfFile) {
				return nil
			}
			return err
		}

		rec := scanner.GetRecord()
		if int(t.attrByteOffset)+keySize > len(rec) {
			return fmt.Errorf("btree: record shorter than attrByteOffset+%d", keySize)
		}
		key := bx.I32(rec[t.attrByteOffset:])
		if err := t.InsertEntry(key, rid); err != nil {
			return err
		}
	}
}

func (t *Tree) reopen() error {
	meta, err := t.bp.GetPage(metaPageID)
	if err != nil {
		return err
	}
	relationName, attrByteOffset, attrType, rootPageNo, rootIsLeaf := readMeta(meta)
	if err := t.bp.Unpin(meta, false); err != nil {
		return err
	}

	if relationName != t.relationName || attrByteOffset != t.attrByteOffset || attrType != t.attrType {
		return ErrBadIndexInfo
	}

	t.rootPageNo = rootPageNo
	t.rootIsLeaf = rootIsLeaf

	count, err := t.sm.CountPages(t.fs)
	if err != nil {
		return err
	}
	if count < rootPageID+1 {
		count = rootPageID + 1
	}
	t.nextPageID = count
	return nil
}

func (t *Tree) allocPage() uint32 {
	id := t.nextPageID
	t.nextPageID++
	return id
}

func (t *Tree) ensureOpen() error {
	if t == nil || t.closed.Load() {
		return ErrTreeClosed
	}
	return nil
}

// Close implements §4.5: end any active scan, flush the file, and never
// raise regardless of what either step reports.
func (t *Tree) Close() error {
	if t.closed.Load() {
		return nil
	}
	if err := t.EndScan(); err != nil && !errors.Is(err, ErrScanNotInitialized) {
		slog.Warn("btree: endScan during close failed", "err", err)
	}
	t.closed.Store(true)
	if err := t.bp.FlushAll(); err != nil {
		slog.Warn("btree: flush during close failed", "err", err)
	}
	return nil
}
