// Package relation implements the base-relation side the btree index is
// built against: a heap of fixed-layout records, addressable by RID and
// scannable front to back. Every record has the same byte length, which is
// what lets the index extract a search key at a constant attrByteOffset
// without decoding anything.
package relation

import (
	"errors"
	"fmt"
	"sync/atomic"

	"bptindex/internal/bufferpool"
	"bptindex/internal/storage"
)

// RID identifies a record by (page, slot), exactly as the index stores it.
type RID struct {
	PageID uint32
	SlotID uint16
}

func (r RID) String() string { return fmt.Sprintf("(%d,%d)", r.PageID, r.SlotID) }

var (
	ErrClosed    = errors.New("relation: relation is closed")
	ErrRecordLen = errors.New("relation: record has the wrong fixed length")
	ErrEndOfFile = errors.New("relation: end of file")
)

// Relation is a heap of fixed-length records backed by the shared buffer
// manager. Records are appended page by page; a page that can no longer fit
// one more record is left with its remaining free space unused; there is no
// overflow path.
type Relation struct {
	Name      string
	RecordLen int

	sm        *storage.StorageManager
	fs        storage.FileSet
	bp        bufferpool.Manager
	pageCount uint32

	closed atomic.Bool
}

func Open(name string, recordLen int, sm *storage.StorageManager, fs storage.FileSet, bp bufferpool.Manager, pageCount uint32) *Relation {
	return &Relation{
		Name:      name,
		RecordLen: recordLen,
		sm:        sm,
		fs:        fs,
		bp:        bp,
		pageCount: pageCount,
	}
}

func (r *Relation) ensureOpen() error {
	if r == nil || r.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (r *Relation) PageCount() uint32 { return r.pageCount }

// Insert appends rec (which must be exactly RecordLen bytes) to the last
// page with room, allocating a new page when every existing one is full.
func (r *Relation) Insert(rec []byte) (RID, error) {
	if err := r.ensureOpen(); err != nil {
		return RID{}, err
	}
	if len(rec) != r.RecordLen {
		return RID{}, ErrRecordLen
	}

	pageID := uint32(0)
	fresh := false
	if r.pageCount > 0 {
		pageID = r.pageCount - 1
	} else {
		r.pageCount = 1
		fresh = true
	}

	for {
		p, err := r.bp.GetPage(pageID)
		if err != nil {
			return RID{}, err
		}
		if fresh {
			// A newly allocated page comes back all zero; give it an empty
			// slot directory before the first tuple goes in.
			p.Reset(pageID)
			fresh = false
		}

		slot, err := p.InsertTuple(rec)
		if errors.Is(err, storage.ErrNoSpace) {
			_ = r.bp.Unpin(p, false)
			pageID = r.pageCount
			r.pageCount++
			fresh = true
			continue
		}
		if err != nil {
			_ = r.bp.Unpin(p, false)
			return RID{}, err
		}

		if err := r.bp.Unpin(p, true); err != nil {
			return RID{}, err
		}
		return RID{PageID: pageID, SlotID: uint16(slot)}, nil
	}
}

// Get reads the record named by rid.
func (r *Relation) Get(rid RID) ([]byte, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	p, err := r.bp.GetPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.bp.Unpin(p, false) }()

	return p.ReadTuple(int(rid.SlotID))
}

func (r *Relation) Flush() error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	return r.bp.FlushAll()
}

func (r *Relation) Close() error {
	if r == nil || r.closed.Swap(true) {
		return nil
	}
	return r.bp.FlushAll()
}

// Scanner is the one-shot relation scan the index's load path consumes:
// ScanNext positions on the next record or returns ErrEndOfFile; GetRecord
// returns the bytes of the record ScanNext last positioned on.
type Scanner struct {
	rel     *Relation
	pageID  uint32
	slot    int
	numSlot int
	last    []byte
	done    bool
}

// Scan opens a fresh front-to-back scanner over every live record.
func (r *Relation) Scan() (*Scanner, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	return &Scanner{rel: r}, nil
}

// ScanNext advances to the next record and writes its rid into *rid. It
// returns ErrEndOfFile once every page has been exhausted.
func (s *Scanner) ScanNext(rid *RID) error {
	if s.done {
		return ErrEndOfFile
	}

	for {
		if s.pageID >= s.rel.pageCount {
			s.done = true
			return ErrEndOfFile
		}

		p, err := s.rel.bp.GetPage(s.pageID)
		if err != nil {
			return err
		}
		if s.numSlot == 0 {
			s.numSlot = p.NumSlots()
			s.slot = 0
		}

		for s.slot < s.numSlot {
			data, err := p.ReadTuple(s.slot)
			slotIdx := s.slot
			s.slot++
			if errors.Is(err, storage.ErrSlotNotFound) {
				continue
			}
			if err != nil {
				_ = s.rel.bp.Unpin(p, false)
				return err
			}
			s.last = data
			if rid != nil {
				*rid = RID{PageID: s.pageID, SlotID: uint16(slotIdx)}
			}
			_ = s.rel.bp.Unpin(p, false)
			return nil
		}

		_ = s.rel.bp.Unpin(p, false)
		s.pageID++
		s.numSlot = 0
	}
}

// GetRecord returns the record bytes ScanNext most recently positioned on.
func (s *Scanner) GetRecord() []byte { return s.last }
