package windowing

// Aggregation describes the combine/merge/finish functions a windowed
// aggregate is built from. Values are type-erased (any) because a keyed
// slice's hash map must hold heterogeneous partials across window
// definitions without forcing every caller through a generic instantiation
// of SliceStore itself.
type Aggregation struct {
	Init    func() any         // zero/identity accumulator
	Combine func(acc, v any) any // fold one tuple value into the accumulator
	Merge   func(a, b any) any   // merge two partial accumulators (cross-worker slice merge)
	Finish  func(acc any) any    // produce the emitted value from a completed accumulator
}

// KeyedEntry pairs a key with its partial aggregate so a keyed Slice can be
// enumerated without re-hashing.
type KeyedEntry struct {
	Key any
	Acc any
}

// Slice is the half-open time interval [Start, End) from spec §3: a keyed
// variant holds K -> partial-aggregate, a non-keyed variant holds one
// partial aggregate. Slice duration always equals the window slide.
type Slice struct {
	Start, End int64
	Keyed      bool

	nonKeyed any
	keyed    map[uint64]*KeyedEntry
}

// NewSlice creates an empty slice covering [start, end).
func NewSlice(start, end int64, keyed bool) *Slice {
	s := &Slice{Start: start, End: end, Keyed: keyed}
	if keyed {
		s.keyed = make(map[uint64]*KeyedEntry)
	}
	return s
}

// UpsertKeyed folds v into the accumulator for keyHash/key, initializing it
// via agg.Init on first write (spec §4.6.2 step 3).
func (s *Slice) UpsertKeyed(keyHash uint64, key any, v any, agg Aggregation) {
	e, ok := s.keyed[keyHash]
	if !ok {
		e = &KeyedEntry{Key: key, Acc: agg.Init()}
		s.keyed[keyHash] = e
	}
	e.Acc = agg.Combine(e.Acc, v)
}

// UpsertNonKeyed folds v into the slice's single accumulator.
func (s *Slice) UpsertNonKeyed(v any, agg Aggregation) {
	if s.nonKeyed == nil {
		s.nonKeyed = agg.Init()
	}
	s.nonKeyed = agg.Combine(s.nonKeyed, v)
}

// Entries returns the keyed partials (in no particular order), or an empty
// slice for a non-keyed slice.
func (s *Slice) Entries() []*KeyedEntry {
	out := make([]*KeyedEntry, 0, len(s.keyed))
	for _, e := range s.keyed {
		out = append(out, e)
	}
	return out
}

// NonKeyed returns the non-keyed slice's single accumulator.
func (s *Slice) NonKeyed() any { return s.nonKeyed }

// MergeInto folds other's partials into s using agg.Merge, producing the
// cross-worker merged slice described in spec §4.6.3.
func (s *Slice) MergeInto(other *Slice, agg Aggregation) {
	if s.Keyed {
		for hash, oe := range other.keyed {
			e, ok := s.keyed[hash]
			if !ok {
				s.keyed[hash] = &KeyedEntry{Key: oe.Key, Acc: oe.Acc}
				continue
			}
			e.Acc = agg.Merge(e.Acc, oe.Acc)
		}
		return
	}
	if other.nonKeyed == nil {
		return
	}
	if s.nonKeyed == nil {
		s.nonKeyed = other.nonKeyed
		return
	}
	s.nonKeyed = agg.Merge(s.nonKeyed, other.nonKeyed)
}
