package join

// hashPage is one page of a hash-table bucket's linked list: a fixed-size
// batch of (key, value) pairs plus a bloom filter over its keys.
type hashPage[T any] struct {
	keys   []uint64
	values []T
	bloom  *pageBloom
	next   *hashPage[T]
}

func newHashPage[T any](pageSize, bloomBits, bloomK int) *hashPage[T] {
	return &hashPage[T]{
		keys:   make([]uint64, 0, pageSize),
		values: make([]T, 0, pageSize),
		bloom:  newPageBloom(bloomBits, bloomK),
	}
}

func (p *hashPage[T]) full(pageSize int) bool { return len(p.keys) >= pageSize }

func (p *hashPage[T]) insert(key uint64, v T) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, v)
	p.bloom.Add(key)
}

// HashTable is the bucketed hash table from spec §4.7.3: bucket count is a
// power of two (mask = buckets-1), each bucket a linked list of
// bloom-filtered pages. Build appends are not synchronized — callers own
// partitioning across workers during build and treat the table read-only
// during probe (spec §5).
type HashTable[T any] struct {
	mask      uint64
	buckets   []*hashPage[T]
	pageSize  int
	bloomBits int
	bloomK    int
}

// NewHashTable rounds numBuckets up to the next power of two.
func NewHashTable[T any](numBuckets, pageSize, bloomBitsPerPage, bloomHashes int) *HashTable[T] {
	n := 1
	for n < numBuckets {
		n <<= 1
	}
	if n == 0 {
		n = 1
	}
	if pageSize <= 0 {
		pageSize = 64
	}
	return &HashTable[T]{
		mask:      uint64(n - 1),
		buckets:   make([]*hashPage[T], n),
		pageSize:  pageSize,
		bloomBits: bloomBitsPerPage,
		bloomK:    bloomHashes,
	}
}

func (h *HashTable[T]) bucketIndex(key uint64) uint64 { return key & h.mask }

// Insert hashes the join key, locates its bucket, and appends to the
// bucket's current page, allocating a new page if it's full or absent
// (spec §4.7.3: "allocate-if-full or append to its current page").
func (h *HashTable[T]) Insert(key uint64, v T) {
	idx := h.bucketIndex(key)
	head := h.buckets[idx]
	if head == nil || head.full(h.pageSize) {
		np := newHashPage[T](h.pageSize, h.bloomBits, h.bloomK)
		np.next = head
		head = np
		h.buckets[idx] = head
	}
	head.insert(key, v)
}

// Probe returns every value whose join key equals key: bloom-checks each
// page before scanning it (spec §4.7.3: "bloom-check pages, linearly scan
// matching records").
func (h *HashTable[T]) Probe(key uint64) []T {
	var out []T
	for pg := h.buckets[h.bucketIndex(key)]; pg != nil; pg = pg.next {
		if !pg.bloom.MayContain(key) {
			continue
		}
		for i, k := range pg.keys {
			if k == key {
				out = append(out, pg.values[i])
			}
		}
	}
	return out
}
