// Package windowing implements the watermark processor, thread-local and
// global slice stores, slice merging, and the tumbling/sliding window sinks
// (spec §4.6).
//
// Grounded in spirit on numaflow's pkg/watermark/processor and
// pkg/watermark/fetch packages (the pack's own streaming engine) and on
// aistore's convention of one mutex guarding a short triggering critical
// section (global slice store) vs. no locking at all on thread-owned state
// (local slice store) — spec §5.
package windowing

import (
	"sync"

	"github.com/streamforge/corex/internal/ratomic"
)

// WatermarkProcessor reconciles per-origin monotonic watermarks into a
// single system-wide watermark: the min, over all known origins, of that
// origin's watermark as of its greatest contiguously-acknowledged sequence
// number (spec §4.6.1). The ordering guarantee in spec §5 ("within one
// origin, sequence numbers ... are contiguous and monotonic") means each
// origin's latest update already reflects its contiguous frontier — this
// processor only needs to reconcile *across* origins.
type WatermarkProcessor struct {
	mu      sync.Mutex
	origins map[uint64]*originState
	current ratomic.Int64
}

type originState struct {
	lastSeq       uint64
	lastWatermark int64
	seen          bool
}

// NewWatermarkProcessor returns a processor with no known origins yet; its
// current watermark is the zero value until the first UpdateWatermark call.
func NewWatermarkProcessor() *WatermarkProcessor {
	return &WatermarkProcessor{origins: make(map[uint64]*originState)}
}

// UpdateWatermark feeds one (origin, sequenceNumber, watermarkTs) triple.
// Both seq and ts must be monotonic per origin; a regression is ignored
// rather than rejected, since the contiguity guarantee means it can only
// arise from a duplicate delivery.
func (w *WatermarkProcessor) UpdateWatermark(ts int64, seq uint64, origin uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.origins[origin]
	if !ok {
		st = &originState{}
		w.origins[origin] = st
	}
	if st.seen && seq <= st.lastSeq {
		return // stale/duplicate
	}
	st.seen = true
	st.lastSeq = seq
	if ts > st.lastWatermark {
		st.lastWatermark = ts
	}
	w.recompute()
}

// recompute must be called with w.mu held.
func (w *WatermarkProcessor) recompute() {
	min := int64(-1)
	for _, st := range w.origins {
		if min == -1 || st.lastWatermark < min {
			min = st.lastWatermark
		}
	}
	if min == -1 {
		min = 0
	}
	w.current.SetIfGreater(min)
}

// GetCurrentWatermark returns the system-wide watermark, monotonic
// non-decreasing over the life of the processor (spec §8 invariant 5).
func (w *WatermarkProcessor) GetCurrentWatermark() int64 { return w.current.Load() }
