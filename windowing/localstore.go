package windowing

import (
	"math"

	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/internal/xerrors"
)

// LocalSliceStore is the thread-local store from spec §3/§4.6.2: an ordered
// deque of slices for one worker thread, no locking (owned exclusively by
// its worker — spec §5).
type LocalSliceStore struct {
	slide         int64
	keyed         bool
	slices        []*Slice // ascending by Start
	lastWatermark int64
	droppedLate   ratomic.Int64 // late-tuple counter (spec §4.6.2 step 1 test hook)
}

// NewLocalSliceStore builds a store whose slices are `slide`-wide.
func NewLocalSliceStore(slide int64, keyed bool) *LocalSliceStore {
	// no watermark seen yet, so no timestamp (including ts=0) is late
	return &LocalSliceStore{slide: slide, keyed: keyed, lastWatermark: math.MinInt64}
}

// DroppedLate reports how many tuples were rejected as late.
func (s *LocalSliceStore) DroppedLate() int64 { return s.droppedLate.Load() }

// FindSliceByTs returns the slice covering ts, creating it if absent.
// Rejects ts <= lastWatermark as late (spec §4.6.2 step 1): the tuple is
// dropped and the counter incremented, per the drop-and-count baseline
// policy spec's Open Questions settles on.
func (s *LocalSliceStore) FindSliceByTs(ts int64) (*Slice, error) {
	if ts <= s.lastWatermark {
		s.droppedLate.Inc()
		return nil, xerrors.ErrWatermarkViolation
	}
	start := (ts / s.slide) * s.slide
	end := start + s.slide

	// binary search for an existing slice with this Start
	lo, hi := 0, len(s.slices)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.slices[mid].Start < start {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.slices) && s.slices[lo].Start == start {
		return s.slices[lo], nil
	}
	sl := NewSlice(start, end, s.keyed)
	s.slices = append(s.slices, nil)
	copy(s.slices[lo+1:], s.slices[lo:])
	s.slices[lo] = sl
	return sl, nil
}

// DrainAll unconditionally removes every remaining slice regardless of the
// watermark, for graceful termination (spec §4.5: "each stage drains
// state, windows emit final results"). Unlike TriggerThreadLocalState it
// does not wait for the watermark to reach a slice's end — a query's final
// EoS has no further watermark advances coming.
func (s *LocalSliceStore) DrainAll(resultSeq *ratomic.Int64) []TriggerResult {
	triggered := make([]TriggerResult, 0, len(s.slices))
	for _, sl := range s.slices {
		triggered = append(triggered, TriggerResult{Slice: sl, SequenceNum: uint64(resultSeq.Inc())})
	}
	s.slices = nil
	return triggered
}

// TriggerResult is one slice moved out of thread-local staging because the
// watermark has advanced past its end (spec §4.6.2 step 2).
type TriggerResult struct {
	Slice       *Slice
	SequenceNum uint64
}

// TriggerThreadLocalState feeds (origin, seq, watermark) to wm and removes
// every slice ending at or before the new watermark, returning them for
// emission as SliceMergeTasks. The upper bound is inclusive (spec §8:
// "slice whose end equals the watermark exactly IS triggered").
func (s *LocalSliceStore) TriggerThreadLocalState(wm *WatermarkProcessor, origin uint64, seq uint64, watermarkTs int64, resultSeq *ratomic.Int64) []TriggerResult {
	wm.UpdateWatermark(watermarkTs, seq, origin)
	newWatermark := wm.GetCurrentWatermark()
	s.lastWatermark = newWatermark

	var triggered []TriggerResult
	i := 0
	for i < len(s.slices) && s.slices[i].End <= newWatermark {
		triggered = append(triggered, TriggerResult{Slice: s.slices[i], SequenceNum: uint64(resultSeq.Inc())})
		i++
	}
	s.slices = s.slices[i:]
	return triggered
}
