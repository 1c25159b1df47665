// Package join implements the window-bounded NLJ and hash stream joins from
// spec §4.7: per-worker paged vectors, a bucketed hash table with a
// per-page bloom filter, and the batch/broadcast build-once-probe-forever
// variant.
//
// Grounded on the teacher's xxhash dependency for key hashing and on the
// generic Pool[T] idiom from the pack's snap/internal/pool package (page
// chaining instead of a single growable slice, so merging per-worker
// vectors at window close is a pointer relink rather than a copy).
package join

// page is one fixed-capacity chunk of a PagedVector.
type page[T any] struct {
	items []T
	next  *page[T]
}

// PagedVector is an append-only, page-linked vector: one per (window, side,
// worker) in the build path (spec §4.7.1). Appending never reallocates past
// the current page, and merging two vectors (CombinePagedVectors) is a
// pointer relink, not a copy.
type PagedVector[T any] struct {
	pageSize   int
	head, tail *page[T]
	len        int
}

func NewPagedVector[T any](pageSize int) *PagedVector[T] {
	if pageSize <= 0 {
		pageSize = 256
	}
	return &PagedVector[T]{pageSize: pageSize}
}

// Append adds v, allocating a new page if the current tail is full.
func (p *PagedVector[T]) Append(v T) {
	if p.tail == nil || len(p.tail.items) >= p.pageSize {
		np := &page[T]{items: make([]T, 0, p.pageSize)}
		if p.tail == nil {
			p.head = np
		} else {
			p.tail.next = np
		}
		p.tail = np
	}
	p.tail.items = append(p.tail.items, v)
	p.len++
}

func (p *PagedVector[T]) Len() int { return p.len }

// ForEach visits every element in append order.
func (p *PagedVector[T]) ForEach(fn func(T)) {
	for pg := p.head; pg != nil; pg = pg.next {
		for _, v := range pg.items {
			fn(v)
		}
	}
}

// appendAllPages relinks other's page chain onto the end of p without
// copying element data.
func (p *PagedVector[T]) appendAllPages(other *PagedVector[T]) {
	if other == nil || other.head == nil {
		return
	}
	if p.tail == nil {
		p.head = other.head
	} else {
		p.tail.next = other.head
	}
	p.tail = other.tail
	p.len += other.len
}

// CombinePagedVectors merges per-worker vectors into one (spec §4.7.2:
// "combinePagedVectors() merges per-worker vectors into a single vector per
// side"). The first non-nil vector's page chain is extended in place.
func CombinePagedVectors[T any](vectors []*PagedVector[T]) *PagedVector[T] {
	combined := NewPagedVector[T](256)
	for _, v := range vectors {
		if v == nil {
			continue
		}
		combined.appendAllPages(v)
	}
	return combined
}
