// Package bufferpool implements the external buffer manager the spec's
// btree and relation layers are built against: GetPage pins a page (loading
// it from disk on a miss), Unpin releases it and optionally marks it dirty,
// and FlushAll writes every dirty page back. A single GlobalPool is shared
// across every relation and index file in the process; View scopes it to
// one FileSet so callers never have to thread a FileSet through every call.
package bufferpool

import (
	"errors"
	"log/slog"
	"sync"

	"bptindex/internal/storage"
)

var (
	DefaultCapacity = 128

	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPagePinned  = errors.New("bufferpool: page is pinned")
)

// ErrUnsupportedFileSet is returned when GlobalPool cannot work with a FileSet implementation.
var ErrUnsupportedFileSet = errors.New("bufferpool: unsupported FileSet (global pool requires LocalFileSet)")

// Replacer tracks which frames are eligible for eviction and picks a victim.
type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

// Manager is the buffer-manager contract every caller (relation scans, the
// btree) depends on: pin, unpin, flush, scoped to one file.
type Manager interface {
	GetPage(pageID uint32) (*storage.Page, error)
	Unpin(page *storage.Page, dirty bool) error
	FlushAll() error
}

// PageTag uniquely identifies a page in the global pool.
type PageTag struct {
	FSKey  string
	PageID uint32
}

// Frame is one resident page and its bookkeeping.
type Frame struct {
	Tag   PageTag
	FS    storage.LocalFileSet
	Page  *storage.Page
	Dirty bool
	Pin   int32
}

// GlobalPool is a single shared buffer pool for every relation and index
// file. It holds a fixed number of frames and uses CLOCK to pick a victim
// when every frame is occupied.
type GlobalPool struct {
	sm *storage.StorageManager

	mu     sync.Mutex
	frames []*Frame        // len == capacity, nil == free slot
	table  map[PageTag]int // (fsKey,pageID) -> frame index
	repl   Replacer
}

func NewGlobalPool(sm *storage.StorageManager, capacity int) *GlobalPool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &GlobalPool{
		sm:     sm,
		frames: make([]*Frame, capacity),
		table:  make(map[PageTag]int),
		repl:   newClockAdapter(capacity),
	}
}

// GetPage pins and returns the page (fs,pageID), loading it from disk on a miss.
func (g *GlobalPool) GetPage(fs storage.FileSet, pageID uint32) (*storage.Page, error) {
	key, lfs, ok := storage.FsKeyOf(fs)
	if !ok {
		return nil, ErrUnsupportedFileSet
	}
	tag := PageTag{FSKey: key, PageID: pageID}

	g.mu.Lock()
	defer g.mu.Unlock()

	if idx, ok := g.table[tag]; ok {
		f := g.frames[idx]
		if f == nil {
			delete(g.table, tag)
		} else {
			wasZero := f.Pin == 0
			f.Pin++
			g.repl.RecordAccess(idx)
			if wasZero {
				g.repl.SetEvictable(idx, false)
			}
			slog.Debug("bufferpool: get page (hit)", "pageID", pageID, "pin", f.Pin)
			return f.Page, nil
		}
	}

	freeIdx := -1
	for i, f := range g.frames {
		if f == nil {
			freeIdx = i
			break
		}
	}
	if freeIdx != -1 {
		page, err := g.sm.LoadPage(lfs, pageID)
		if err != nil {
			return nil, err
		}
		g.frames[freeIdx] = &Frame{Tag: tag, FS: lfs, Page: page, Pin: 1}
		g.table[tag] = freeIdx
		g.repl.RecordAccess(freeIdx)
		g.repl.SetEvictable(freeIdx, false)
		slog.Debug("bufferpool: get page (load into free frame)", "pageID", pageID, "frame", freeIdx)
		return page, nil
	}

	victimIdx, ok := g.repl.Evict()
	if !ok {
		return nil, ErrNoFreeFrame
	}
	victim := g.frames[victimIdx]
	if victim == nil || victim.Pin != 0 {
		return nil, ErrNoFreeFrame
	}
	slog.Debug("bufferpool: evicting victim frame", "frame", victimIdx, "victimPageID", victim.Tag.PageID, "dirty", victim.Dirty)

	if victim.Dirty {
		if err := g.sm.SavePage(victim.FS, victim.Tag.PageID, victim.Page); err != nil {
			g.repl.RecordAccess(victimIdx)
			g.repl.SetEvictable(victimIdx, true)
			return nil, err
		}
		victim.Dirty = false
	}

	newPage, err := g.sm.LoadPage(lfs, pageID)
	if err != nil {
		g.repl.RecordAccess(victimIdx)
		g.repl.SetEvictable(victimIdx, true)
		return nil, err
	}

	delete(g.table, victim.Tag)

	victim.Tag = tag
	victim.FS = lfs
	victim.Page = newPage
	victim.Dirty = false
	victim.Pin = 1

	g.table[tag] = victimIdx
	g.repl.RecordAccess(victimIdx)
	g.repl.SetEvictable(victimIdx, false)

	slog.Debug("bufferpool: get page (load via eviction)", "pageID", pageID, "frame", victimIdx)
	return newPage, nil
}

// Unpin decreases a page's pin count, marking its frame dirty if requested.
func (g *GlobalPool) Unpin(fs storage.FileSet, page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	key, _, ok := storage.FsKeyOf(fs)
	if !ok {
		return ErrUnsupportedFileSet
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// The frame is found by the page pointer GetPage handed out, not by a page
	// id read from the buffer: btree nodes overwrite the whole buffer, and a
	// page that was never Reset carries no id in it.
	idx := -1
	for i, fr := range g.frames {
		if fr != nil && fr.Page == page && fr.Tag.FSKey == key {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	f := g.frames[idx]

	if dirty {
		f.Dirty = true
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			g.repl.SetEvictable(idx, true)
		}
	}
	slog.Debug("bufferpool: unpin", "pageID", f.Tag.PageID, "pin", f.Pin, "dirty", f.Dirty)
	return nil
}

// FlushAll writes every dirty frame in the pool back to disk. It fails with
// ErrPagePinned, writing nothing, if any frame is still pinned — a pinned
// page means a caller still holds a reference expecting its current
// in-memory content, so flushing through it would hide a leaked pin instead
// of surfacing it.
func (g *GlobalPool) FlushAll() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, f := range g.frames {
		if f != nil && f.Pin != 0 {
			return ErrPagePinned
		}
	}

	for _, f := range g.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := g.sm.SavePage(f.FS, f.Tag.PageID, f.Page); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}

// FlushFileSet writes only the dirty frames belonging to fs, with the same
// pin contract as FlushAll.
func (g *GlobalPool) FlushFileSet(fs storage.FileSet) error {
	key, _, ok := storage.FsKeyOf(fs)
	if !ok {
		return ErrUnsupportedFileSet
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, f := range g.frames {
		if f != nil && f.Tag.FSKey == key && f.Pin != 0 {
			return ErrPagePinned
		}
	}

	for _, f := range g.frames {
		if f == nil || !f.Dirty || f.Tag.FSKey != key {
			continue
		}
		if err := g.sm.SavePage(f.FS, f.Tag.PageID, f.Page); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}

// DropFileSet evicts every page of fs from the pool. It must be called
// before the underlying segments are removed, and fails with ErrPagePinned
// if any page of fs is still pinned.
func (g *GlobalPool) DropFileSet(fs storage.FileSet) error {
	key, _, ok := storage.FsKeyOf(fs)
	if !ok {
		return ErrUnsupportedFileSet
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, f := range g.frames {
		if f != nil && f.Tag.FSKey == key && f.Pin != 0 {
			return ErrPagePinned
		}
	}

	for i, f := range g.frames {
		if f == nil || f.Tag.FSKey != key {
			continue
		}
		if f.Dirty {
			if err := g.sm.SavePage(f.FS, f.Tag.PageID, f.Page); err != nil {
				return err
			}
		}
		delete(g.table, f.Tag)
		g.frames[i] = nil
		g.repl.Remove(i)
	}
	return nil
}
