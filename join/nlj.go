package join

// NLJProbe implements the nested-loop join probe from spec §4.7.2: merge
// per-worker vectors per side, then iterate the Cartesian product
// evaluating predicate, emitting combine(l, r) for every match. O(|L|·|R|);
// used when the predicate is general or join keys are small.
func NLJProbe[L, R, O any](left []*PagedVector[L], right []*PagedVector[R], predicate func(L, R) bool, combine func(L, R) O) []O {
	mergedLeft := CombinePagedVectors(left)
	mergedRight := CombinePagedVectors(right)

	var out []O
	mergedLeft.ForEach(func(l L) {
		mergedRight.ForEach(func(r R) {
			if predicate(l, r) {
				out = append(out, combine(l, r))
			}
		})
	})
	return out
}
