package storage

import "bptindex/pkg/bx"

// Page is a slotted page: a fixed-size byte buffer divided into a header, a
// slot directory that grows upward from the header, and tuple payloads that
// grow downward from the top of the page.
//
//	+------------------+ 0
//	| flags | pageID    |
//	| lower | upper     |  <- header (HeaderSize bytes)
//	+------------------+ <- lower (slot directory ends here)
//	| slot | slot | ... |  <- grows down as slots are appended
//	+------------------+
//	|   free space     |
//	+------------------+ <- upper (tuple area starts here)
//	| ... | tuple | tuple|  <- grows up as tuples are appended
//	+------------------+ PageSize
//
// Pages are raw buffers owned by the buffer manager; LeafNode/NonLeafNode in
// package btree are typed views over a Page's buffer, valid only while the
// page stays pinned.
type Page struct {
	buf []byte
}

// NewPage wraps an existing PageSize buffer without touching its contents,
// e.g. a buffer just loaded from disk.
func NewPage(buf []byte) *Page {
	return &Page{buf: buf}
}

// Reset reinitializes the page as empty and tags it with pageID. Used for
// newly allocated pages.
func (p *Page) Reset(pageID uint32) {
	for i := range p.buf {
		p.buf[i] = 0
	}
	bx.PutU16At(p.buf, 0, 0)                  // flags (unused)
	bx.PutU32At(p.buf, 2, pageID)             // page id
	bx.PutU16At(p.buf, 6, uint16(HeaderSize)) // lower: slot dir end
	bx.PutU16At(p.buf, 8, uint16(PageSize))   // upper: tuple area start
}

func (p *Page) Buf() []byte { return p.buf }

func (p *Page) PageID() uint32 { return bx.U32At(p.buf, 2) }

func (p *Page) lower() int     { return int(bx.U16At(p.buf, 6)) }
func (p *Page) setLower(v int) { bx.PutU16At(p.buf, 6, uint16(v)) }

func (p *Page) upper() int     { return int(bx.U16At(p.buf, 8)) }
func (p *Page) setUpper(v int) { bx.PutU16At(p.buf, 8, uint16(v)) }

// NumSlots returns how many slot-directory entries exist on the page. An
// all-zero page that was never Reset has none.
func (p *Page) NumSlots() int {
	if p.lower() < HeaderSize {
		return 0
	}
	return (p.lower() - HeaderSize) / SlotSize
}

func (p *Page) slotOffset(i int) int { return HeaderSize + i*SlotSize }

func (p *Page) getSlot(i int) (offset, length int, deleted bool) {
	o := p.slotOffset(i)
	return int(bx.U16At(p.buf, o)), int(bx.U16At(p.buf, o+2)), bx.U16At(p.buf, o+4) != 0
}

func (p *Page) putSlot(i, offset, length int, deleted bool) {
	o := p.slotOffset(i)
	bx.PutU16At(p.buf, o, uint16(offset))
	bx.PutU16At(p.buf, o+2, uint16(length))
	flags := uint16(0)
	if deleted {
		flags = 1
	}
	bx.PutU16At(p.buf, o+4, flags)
}

// InsertTuple appends a fixed-layout tuple at the end of the slot directory
// and returns its slot index.
func (p *Page) InsertTuple(tup []byte) (int, error) {
	need := len(tup) + SlotSize
	if p.upper()-p.lower() < need {
		return -1, ErrNoSpace
	}
	u := p.upper() - len(tup)
	copy(p.buf[u:], tup)
	p.setUpper(u)

	slot := p.NumSlots()
	p.putSlot(slot, u, len(tup), false)
	p.setLower(p.lower() + SlotSize)
	return slot, nil
}

// ReadTuple returns the raw bytes stored at slot.
func (p *Page) ReadTuple(slot int) ([]byte, error) {
	if slot < 0 || slot >= p.NumSlots() {
		return nil, ErrSlotNotFound
	}
	offset, length, deleted := p.getSlot(slot)
	if deleted {
		return nil, ErrSlotNotFound
	}
	return p.buf[offset : offset+length], nil
}

// UpdateTuple overwrites slot in place with a same-size (or smaller) payload;
// the slot's recorded length is left unchanged.
func (p *Page) UpdateTuple(slot int, data []byte) error {
	offset, length, deleted := p.getSlot(slot)
	if deleted || len(data) > length {
		return ErrSlotNotFound
	}
	copy(p.buf[offset:offset+len(data)], data)
	return nil
}
