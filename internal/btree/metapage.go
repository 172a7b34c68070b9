package btree

import (
	"strconv"

	"bptindex/internal/storage"
	"bptindex/pkg/bx"
)

// AttrType tags the scalar type an index is built over. This package only
// implements the integer variant (§9 leaves double/string as a parallel
// design); the tag is still persisted so a reopen can validate it.
type AttrType int32

const (
	AttrInteger AttrType = iota
	AttrDouble
	AttrString
)

// Meta page (page 0) layout:
//
//	[0:20)   relationName, zero-terminated
//	[20:24)  attrByteOffset (int32)
//	[24:28)  attrType
//	[28:32)  rootPageNo
//	[32:33)  rootIsLeaf
const (
	metaRelationNameOff   = 0
	metaRelationNameLen   = 20
	metaAttrByteOffsetOff = metaRelationNameOff + metaRelationNameLen
	metaAttrTypeOff       = metaAttrByteOffsetOff + u32Size
	metaRootPageNoOff     = metaAttrTypeOff + u32Size
	metaRootIsLeafOff     = metaRootPageNoOff + pageIDSize
)

// IndexName derives the on-disk index name the spec requires:
// relationName + "." + decimal(attrByteOffset).
func IndexName(relationName string, attrByteOffset int32) string {
	return relationName + "." + strconv.Itoa(int(attrByteOffset))
}

func writeMeta(p *storage.Page, relationName string, attrByteOffset int32, attrType AttrType, rootPageNo uint32, rootIsLeaf bool) {
	buf := p.Buf()
	for i := 0; i < metaRelationNameLen; i++ {
		buf[i] = 0
	}
	name := relationName
	if len(name) > metaRelationNameLen-1 {
		name = name[:metaRelationNameLen-1]
	}
	copy(buf[metaRelationNameOff:], name)

	bx.PutU32At(buf, metaAttrByteOffsetOff, uint32(attrByteOffset))
	bx.PutU32At(buf, metaAttrTypeOff, uint32(attrType))
	bx.PutU32At(buf, metaRootPageNoOff, rootPageNo)
	if rootIsLeaf {
		buf[metaRootIsLeafOff] = 1
	} else {
		buf[metaRootIsLeafOff] = 0
	}
}

func readMeta(p *storage.Page) (relationName string, attrByteOffset int32, attrType AttrType, rootPageNo uint32, rootIsLeaf bool) {
	buf := p.Buf()
	name := buf[metaRelationNameOff : metaRelationNameOff+metaRelationNameLen]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	relationName = string(name[:n])
	attrByteOffset = bx.I32(buf[metaAttrByteOffsetOff:])
	attrType = AttrType(bx.U32At(buf, metaAttrTypeOff))
	rootPageNo = bx.U32At(buf, metaRootPageNoOff)
	rootIsLeaf = buf[metaRootIsLeafOff] != 0
	return
}
