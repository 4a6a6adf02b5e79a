package wire

import "sync/atomic"

// IDAllocator hands out monotonically increasing command ids, starting
// at 1. A *Connection owns exactly one of these, shared by every caller
// of Call.
type IDAllocator struct {
	next atomic.Int64
}

// NewIDAllocator returns an allocator whose first Next() call returns 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next id in the sequence. Safe for concurrent use.
func (a *IDAllocator) Next() int64 {
	return a.next.Add(1)
}
