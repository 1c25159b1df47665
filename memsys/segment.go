// Package memsys implements the tuple-buffer memory subsystem: pooled,
// reference-counted, recyclable fixed-size buffers with parent/child
// attachment for variable-length payloads (spec §3, §4.1, §4.2).
//
// Grounded on aistore's memsys.Slab / MMSA pool-of-fixed-size-buffers
// design (github.com/NVIDIA/aistore/memsys, exercised by the teacher via
// cluster.T.PageMM().GetSlab(...) in xact/xs/tcb.go) and on the aistore
// transport package's retain/release-on-send convention.
package memsys

import (
	"github.com/streamforge/corex/internal/ratomic"
)

// recycler returns a segment's backing memory to wherever it came from once
// its refcount reaches zero. Implemented by BufferPool (pooled) and by a
// one-off unpooledRecycler (GetUnpooledBuffer).
type recycler interface {
	recycle(seg *segment)
}

// segment is the MemorySegment control block: fixed-size backing memory
// plus an atomic refcount, an owning recycler, optional recycle callbacks,
// and a strong, one-directional list of attached child segments.
//
// Invariant: refcount >= 0; a segment is handed back to its recycler exactly
// once, the instant the count transitions to 0. There is deliberately no
// child -> parent back-reference (spec §9: break shared-ownership cycles) —
// children are kept alive solely because the parent's children slice holds a
// strong reference to them.
type segment struct {
	data     []byte
	refcount ratomic.Int32
	owner    recycler

	onRecycle []func([]byte) // optional per-segment recycle hooks

	// metadata, set by the producer before the buffer is handed off
	numTuples    int
	originID     uint64
	watermarkTS  int64
	sequenceNum  uint64
	creationTS   int64

	children []*segment // strong refs, insertion order == attach order
}

func (s *segment) retain() {
	s.refcount.Inc()
}

// release decrements the refcount and, on transition to zero, recycles the
// segment's own memory and releases its children (which may themselves
// cascade to zero). Children are released after the parent's own memory is
// returned so that a buggy recycle callback can never observe a live child
// whose parent has already vanished.
func (s *segment) release() {
	if s.refcount.Dec() > 0 {
		return
	}
	for _, cb := range s.onRecycle {
		cb(s.data)
	}
	children := s.children // recycle clears s.children
	if s.owner != nil {
		s.owner.recycle(s)
	}
	for _, c := range children {
		c.release()
	}
}

type unpooledRecycler struct{}

func (unpooledRecycler) recycle(seg *segment) {
	seg.data = nil // let GC reclaim; no backing pool to return to
}
