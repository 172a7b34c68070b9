package btree

import "errors"

// Domain-level error kinds the tree itself raises. Collaborator errors
// (relation.ErrEndOfFile, bufferpool.ErrPagePinned) are recovered internally
// where the design calls for it and otherwise surfaced unchanged.
var (
	ErrTreeClosed = errors.New("btree: tree is closed")

	ErrBadIndexInfo       = errors.New("btree: reopened index metadata does not match caller")
	ErrBadOpcodes         = errors.New("btree: scan operators outside {GT,GTE}x{LT,LTE}")
	ErrBadScanrange       = errors.New("btree: low bound greater than high bound")
	ErrNoSuchKeyFound     = errors.New("btree: no entry satisfies the scan range")
	ErrScanNotInitialized = errors.New("btree: no scan is active")
	ErrIndexScanCompleted = errors.New("btree: scan has no more entries")
)
