package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// FileSet names a paged file made of one or more fixed-size segments.
type FileSet interface {
	OpenSegment(segNo int32) (*os.File, error)
}

var _ FileSet = (*LocalFileSet)(nil)

// LocalFileSet is a paged file rooted at Dir/Base. Segments beyond the
// first are named Base.1, Base.2, ...
type LocalFileSet struct {
	Dir  string
	Base string
}

func (lfs LocalFileSet) OpenSegment(segNo int32) (*os.File, error) {
	if err := os.MkdirAll(lfs.Dir, FileMode0755); err != nil {
		return nil, err
	}
	path := filepath.Join(lfs.Dir, SegFileName(lfs.Base, segNo))
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
}

func closeLogged(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Warn("storage: close failed", "file", f.Name(), "err", err)
	}
}

// StorageManager maps a logical PageId to a (segment, offset) pair and
// moves PageSize-sized buffers to and from disk. It holds no state of its
// own beyond the geometry constants — callers always go through the buffer
// manager (package bufferpool), which is the only component that keeps
// pages resident in memory.
type StorageManager struct{}

func NewStorageManager() *StorageManager {
	return &StorageManager{}
}

func (sm *StorageManager) pagesPerSegment() int64 {
	return SegmentSize / PageSize
}

func (sm *StorageManager) locate(pageID uint32) (segNo int32, offset int64) {
	pps := sm.pagesPerSegment()
	segNo = int32(int64(pageID) / pps)
	offset = (int64(pageID) % pps) * PageSize
	return segNo, offset
}

// ReadPage reads exactly one page into dst, zero-filling any portion past
// the current end of file (a page that was allocated logically but never
// flushed reads back as all-zero).
func (sm *StorageManager) ReadPage(fs FileSet, pageID uint32, dst []byte) error {
	if len(dst) != PageSize {
		return fmt.Errorf("storage: dst must be %d bytes", PageSize)
	}
	segNo, off := sm.locate(pageID)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer closeLogged(f)

	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage writes exactly one page to disk at the location pageID maps to.
func (sm *StorageManager) WritePage(fs FileSet, pageID uint32, src []byte) error {
	if len(src) != PageSize {
		return fmt.Errorf("storage: src must be %d bytes", PageSize)
	}
	segNo, off := sm.locate(pageID)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer closeLogged(f)

	n, err := f.WriteAt(src, off)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// LoadPage reads pageID into memory as a *Page.
func (sm *StorageManager) LoadPage(fs FileSet, pageID uint32) (*Page, error) {
	buf := make([]byte, PageSize)
	if err := sm.ReadPage(fs, pageID, buf); err != nil {
		return nil, err
	}
	return NewPage(buf), nil
}

// SavePage writes p back to the slot pageID maps to.
func (sm *StorageManager) SavePage(fs FileSet, pageID uint32, p *Page) error {
	return sm.WritePage(fs, pageID, p.Buf())
}

// CountPages scans every segment of fs and returns the total page count.
func (sm *StorageManager) CountPages(fs FileSet) (uint32, error) {
	var total uint32

	for segNo := int32(0); ; segNo++ {
		// OpenSegment creates missing segments, so stop at the first one that
		// is not on disk before opening it.
		if lfs, ok := fs.(LocalFileSet); ok {
			if _, err := os.Stat(filepath.Join(lfs.Dir, SegFileName(lfs.Base, segNo))); os.IsNotExist(err) {
				break
			}
		}
		f, err := fs.OpenSegment(segNo)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return 0, err
		}
		info, statErr := f.Stat()
		closeLogged(f)
		if statErr != nil {
			return 0, statErr
		}
		if info.Size() <= 0 {
			continue
		}
		total += uint32(info.Size() / PageSize)
	}
	return total, nil
}
