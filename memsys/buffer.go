package memsys

import (
	"time"

	"github.com/streamforge/corex/internal/xerrors"
)

// Buffer is the TupleBuffer handle from spec §3/§4.2: a value-typed owning
// reference to a segment. Copying a Buffer does NOT implicitly retain it —
// Go has no copy constructors — so callers that want another strong
// reference call Retain() explicitly and keep its result; Release() drops
// one reference. This mirrors the teacher's own Obj/Reader retain-before-
// send, release-on-complete convention in transport/send.go.
type Buffer struct {
	seg *segment
}

// IsValid reports whether the handle refers to a live segment.
func (b Buffer) IsValid() bool { return b.seg != nil }

// Retain returns a new strong handle over the same segment, incrementing its
// refcount.
func (b Buffer) Retain() Buffer {
	if b.seg == nil {
		return Buffer{}
	}
	b.seg.retain()
	return Buffer{seg: b.seg}
}

// Release drops this handle's reference. The zero value is safe to release
// (a no-op), so callers may defer Release unconditionally.
func (b Buffer) Release() {
	if b.seg == nil {
		return
	}
	b.seg.release()
}

// Data returns the raw backing slice. Unsynchronized: the producer/consumer
// must achieve mutual exclusion through pipeline topology, per spec §4.2.
func (b Buffer) Data() []byte { return b.seg.data }

// Size returns the segment size in bytes.
func (b Buffer) Size() int { return len(b.seg.data) }

// NumberOfTuples / SetNumberOfTuples expose the tuple count metadata.
func (b Buffer) NumberOfTuples() int        { return b.seg.numTuples }
func (b Buffer) SetNumberOfTuples(n int)    { b.seg.numTuples = n }

// OriginID / SetOriginID expose the producer origin.
func (b Buffer) OriginID() uint64     { return b.seg.originID }
func (b Buffer) SetOriginID(id uint64) { b.seg.originID = id }

// WatermarkTS / SetWatermarkTS expose the watermark timestamp this buffer
// was stamped with at emission time.
func (b Buffer) WatermarkTS() int64      { return b.seg.watermarkTS }
func (b Buffer) SetWatermarkTS(ts int64) { b.seg.watermarkTS = ts }

// SequenceNumber / SetSequenceNumber expose the per-origin sequence number.
func (b Buffer) SequenceNumber() uint64      { return b.seg.sequenceNum }
func (b Buffer) SetSequenceNumber(n uint64)  { b.seg.sequenceNum = n }

// CreationTS / SetCreationTS expose the buffer's creation timestamp.
func (b Buffer) CreationTS() int64      { return b.seg.creationTS }
func (b Buffer) SetCreationTS(ts int64) { b.seg.creationTS = ts }

// Stamp sets the canonical emission metadata a Source attaches to a buffer
// (spec §6, source contract): origin, sequence, watermark, creation time.
func (b Buffer) Stamp(originID uint64, seq uint64, watermark int64) {
	b.seg.originID = originID
	b.seg.sequenceNum = seq
	b.seg.watermarkTS = watermark
	b.seg.creationTS = time.Now().UnixNano()
}

// OnRecycle registers a callback invoked (on the releasing goroutine) the
// instant this segment's refcount reaches zero, before it returns to its
// recycler. Used by the network transport to release a zero-copy send
// buffer only once the underlying connection is done with its memory.
func (b Buffer) OnRecycle(cb func([]byte)) {
	b.seg.onRecycle = append(b.seg.onRecycle, cb)
}

// AttachChild stores a strong reference from this buffer to child, keeping
// child alive at least as long as this buffer (spec §3 invariant: a
// buffer's lifetime >= every attached child's). Returns the 0-based
// insertion-order index; detaching is not supported (spec §4.2).
func (b Buffer) AttachChild(child Buffer) int {
	child.seg.retain()
	b.seg.children = append(b.seg.children, child.seg)
	return len(b.seg.children) - 1
}

// LoadChild returns a new strong handle to the child at index, or an error
// if index is out of range.
func (b Buffer) LoadChild(index int) (Buffer, error) {
	if index < 0 || index >= len(b.seg.children) {
		return Buffer{}, &xerrors.BufferAccessError{Index: index, Bound: len(b.seg.children), What: "LoadChild"}
	}
	child := b.seg.children[index]
	child.retain()
	return Buffer{seg: child}, nil
}

// NumberOfChildren returns the count of attached children.
func (b Buffer) NumberOfChildren() int { return len(b.seg.children) }
