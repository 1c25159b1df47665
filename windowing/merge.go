package windowing

import "sync"

// SliceMergeTask carries the coordinates of a thread-local slice that a
// worker has finished pre-aggregating (spec §4.6.2 step 2 / §4.6.3).
type SliceMergeTask struct {
	SliceStart, SliceEnd int64
	SequenceNumber       uint64
}

// sliceKey is the (start, end) identity SliceMergeTasks and pending merges
// are indexed by.
type sliceKey struct{ start, end int64 }

// SliceMerger is the second pipeline from spec §4.6.3: it receives
// SliceMergeTasks (paired with the triggering worker's own pre-aggregated
// slice) and merges every thread-local slice sharing a (start, end) into
// one global slice.
//
// Completeness design decision (spec leaves the exact cross-worker
// completeness signal unspecified): rather than waiting for a fixed worker
// count — a worker that saw no tuples in a slice never creates one, so "all
// N workers reported" is not a reliable completeness test — the merger
// reuses the same watermark-reconciliation mechanism as every other stage,
// treating each worker as its own watermark origin. A pending (start, end)
// bucket is forwarded once the merger's own watermark has advanced past
// its end, exactly mirroring how a thread-local store decides a slice is
// done.
type SliceMerger struct {
	mu      sync.Mutex
	agg     Aggregation
	pending map[sliceKey]*Slice
	wm      *WatermarkProcessor
}

func NewSliceMerger(agg Aggregation) *SliceMerger {
	return &SliceMerger{
		agg:     agg,
		pending: make(map[sliceKey]*Slice),
		wm:      NewWatermarkProcessor(),
	}
}

// Contribute merges a worker's pre-aggregated slice into the pending bucket
// for its (start, end).
func (m *SliceMerger) Contribute(task SliceMergeTask, contributed *Slice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sliceKey{task.SliceStart, task.SliceEnd}
	if existing, ok := m.pending[key]; ok {
		existing.MergeInto(contributed, m.agg)
		return
	}
	merged := NewSlice(task.SliceStart, task.SliceEnd, contributed.Keyed)
	merged.MergeInto(contributed, m.agg)
	m.pending[key] = merged
}

// Heartbeat advances worker's own watermark frontier; it must be called
// for every worker on every buffer it processes (not only when a slice
// triggers), so the merger can reconcile completeness even for workers
// that contributed nothing to a given slice.
func (m *SliceMerger) Heartbeat(worker uint64, seq uint64, watermarkTs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wm.UpdateWatermark(watermarkTs, seq, worker)
}

// Drain returns every pending slice whose end is now covered by the
// merger's watermark, removing them from pending, in ascending end order.
func (m *SliceMerger) Drain() []*Slice {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm := m.wm.GetCurrentWatermark()
	var ready []*Slice
	for k, sl := range m.pending {
		if sl.End <= wm {
			ready = append(ready, sl)
			delete(m.pending, k)
		}
	}
	// ascending end order (spec §5: strictly ascending window-end emission)
	for i := 1; i < len(ready); i++ {
		for j := i; j > 0 && ready[j-1].End > ready[j].End; j-- {
			ready[j-1], ready[j] = ready[j], ready[j-1]
		}
	}
	return ready
}
