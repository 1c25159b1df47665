package join

import "github.com/streamforge/corex/internal/xerrors"

// BroadcastHashJoin is the single-window, build-once-probe-forever variant
// from spec §4.7.5: per-worker PagedVectors are merged into one global hash
// table exactly once (MergeState); every probe after that is read-only.
type BroadcastHashJoin[L, R, O any] struct {
	table      *HashTable[L]
	merged     bool
	keyOf      func(L) uint64
	probeKeyOf func(R) uint64
	predicate  func(L, R) bool
	combine    func(L, R) O
}

func NewBroadcastHashJoin[L, R, O any](cfg HashProbeConfig, keyOf func(L) uint64, probeKeyOf func(R) uint64, predicate func(L, R) bool, combine func(L, R) O) *BroadcastHashJoin[L, R, O] {
	return &BroadcastHashJoin[L, R, O]{
		table:      NewHashTable[L](cfg.NumBuckets, cfg.PageSize, cfg.BloomBits, cfg.BloomHashes),
		keyOf:      keyOf,
		probeKeyOf: probeKeyOf,
		predicate:  predicate,
		combine:    combine,
	}
}

// MergeState merges the per-worker build vectors into the global table.
// Invariant: no further inserts after this call (spec §4.7.5) — a second
// call returns an error instead of silently re-merging.
func (j *BroadcastHashJoin[L, R, O]) MergeState(perWorker []*PagedVector[L]) error {
	if j.merged {
		return xerrors.ErrAlreadyMerged
	}
	j.merged = true
	merged := CombinePagedVectors(perWorker)
	merged.ForEach(func(l L) {
		j.table.Insert(j.keyOf(l), l)
	})
	return nil
}

// Probe reads the merged table; valid any number of times, concurrently,
// once MergeState has completed (spec §5: "during probe the table is
// read-only").
func (j *BroadcastHashJoin[L, R, O]) Probe(r R) []O {
	var out []O
	for _, l := range j.table.Probe(j.probeKeyOf(r)) {
		if j.predicate(l, r) {
			out = append(out, j.combine(l, r))
		}
	}
	return out
}
