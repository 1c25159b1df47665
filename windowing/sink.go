package windowing

// TumblingSink is the window sink for tumbling windows (spec §4.6.5):
// slice duration equals window size, so a merged slice coming out of the
// SliceMerger already IS the window result — no further combining step,
// but the slice still holds raw partial accumulators and must run them
// through agg.Finish before emission (spec §8 invariant 4), exactly as
// GlobalSliceStore.tryComplete does for sliding windows.
type TumblingSink struct {
	agg  Aggregation
	emit func(Window)
	seq  uint64
}

func NewTumblingSink(agg Aggregation, emit func(Window)) *TumblingSink {
	return &TumblingSink{agg: agg, emit: emit}
}

// Forward turns a merged slice into a Window and emits it directly,
// assigning the sink's own monotonically increasing sequence number.
func (t *TumblingSink) Forward(sl *Slice) {
	t.seq++
	win := Window{Start: sl.Start, End: sl.End, SequenceNum: t.seq, Keyed: sl.Keyed}
	if sl.Keyed {
		entries := sl.Entries()
		win.Entries = make([]*KeyedEntry, len(entries))
		for i, e := range entries {
			win.Entries[i] = &KeyedEntry{Key: e.Key, Acc: t.agg.Finish(e.Acc)}
		}
	} else if acc := sl.NonKeyed(); acc != nil {
		win.NonKeyed = t.agg.Finish(acc)
	}
	t.emit(win)
}

// SlidingSink is the window sink for sliding windows (spec §4.6.4): a merged
// slice can belong to several overlapping windows, so it is handed to a
// GlobalSliceStore which decides which windows newly became complete.
type SlidingSink struct {
	store                  *GlobalSliceStore
	windowSize, windowSlide int64
	emit                   func(Window)
}

func NewSlidingSink(agg Aggregation, windowSize, windowSlide int64, emit func(Window)) *SlidingSink {
	return &SlidingSink{
		store:       NewGlobalSliceStore(agg),
		windowSize:  windowSize,
		windowSlide: windowSlide,
		emit:        emit,
	}
}

// Forward inserts a merged slice and emits every window that newly became
// complete, in ascending end order.
func (s *SlidingSink) Forward(sequenceNumber uint64, sl *Slice) {
	for _, win := range s.store.AddSliceAndTriggerWindows(sequenceNumber, sl, s.windowSize, s.windowSlide) {
		s.emit(win)
	}
}
