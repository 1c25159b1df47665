package join

// HashProbeConfig carries the bucket/page/bloom tuning parameters spec
// §4.7.3 calls out as configuration inputs.
type HashProbeConfig struct {
	NumBuckets  int
	PageSize    int
	BloomBits   int
	BloomHashes int
}

// HashProbe implements the hash-join probe from spec §4.7.3: build a
// bucketed hash table from the merged left side keyed by keyOf, then probe
// it with every merged right-side tuple via probeKeyOf, emitting
// combine(l, r) for every predicate match among bloom-surviving candidates.
func HashProbe[L, R, O any](cfg HashProbeConfig, left []*PagedVector[L], right []*PagedVector[R], keyOf func(L) uint64, probeKeyOf func(R) uint64, predicate func(L, R) bool, combine func(L, R) O) []O {
	table := NewHashTable[L](cfg.NumBuckets, cfg.PageSize, cfg.BloomBits, cfg.BloomHashes)

	mergedLeft := CombinePagedVectors(left)
	mergedLeft.ForEach(func(l L) {
		table.Insert(keyOf(l), l)
	})

	mergedRight := CombinePagedVectors(right)
	var out []O
	mergedRight.ForEach(func(r R) {
		key := probeKeyOf(r)
		for _, l := range table.Probe(key) {
			if predicate(l, r) {
				out = append(out, combine(l, r))
			}
		}
	})
	return out
}
