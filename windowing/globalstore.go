package windowing

import "sync"

// Window is a triggered, complete window result: the ordered union of
// every slice whose [start, end) lies inside [Start, End) (spec §3).
type Window struct {
	Start, End  int64
	SequenceNum uint64
	Keyed       bool
	Entries     []*KeyedEntry // keyed windows
	NonKeyed    any           // non-keyed windows
}

// GlobalSliceStore is the append-only, mutex-guarded global store from
// spec §3/§4.6.4: slices are indexed by end time; addSliceAndTriggerWindows
// returns every window that newly became complete. A single short critical
// section per call (spec §5: "a single mutex around the triggering path").
type GlobalSliceStore struct {
	mu         sync.Mutex
	agg        Aggregation
	bySliceEnd map[int64]*Slice
	triggered  map[int64]bool // keyed by window End: each window fires at most once
	resultSeq  uint64
}

func NewGlobalSliceStore(agg Aggregation) *GlobalSliceStore {
	return &GlobalSliceStore{
		agg:        agg,
		bySliceEnd: make(map[int64]*Slice),
		triggered:  make(map[int64]bool),
	}
}

// AddSliceAndTriggerWindows inserts slice (merging into any existing slice
// with the same end, since two SliceMergeTasks can legitimately target the
// same (start,end) across epochs) and returns every window of the given
// size/slide that newly became complete, in ascending end order (spec §5:
// "window emission is strictly in ascending window-end order").
func (g *GlobalSliceStore) AddSliceAndTriggerWindows(sequenceNumber uint64, slice *Slice, windowSize, windowSlide int64) []Window {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.bySliceEnd[slice.End]; ok {
		existing.MergeInto(slice, g.agg)
	} else {
		g.bySliceEnd[slice.End] = slice
	}

	slicesPerWindow := windowSize / windowSlide
	var windows []Window
	// a slice ending at E belongs to windows ending at E, E+slide, ..., up
	// to E+windowSize-slide (i.e. every window whose range covers it).
	for k := int64(0); k < slicesPerWindow; k++ {
		we := slice.End + k*windowSlide
		ws := we - windowSize
		if g.triggered[we] {
			continue
		}
		if win, complete := g.tryComplete(ws, we, slicesPerWindow); complete {
			g.triggered[we] = true
			g.resultSeq++
			win.SequenceNum = g.resultSeq
			windows = append(windows, win)
		}
	}
	return windows
}

// tryComplete must be called with g.mu held.
func (g *GlobalSliceStore) tryComplete(ws, we int64, slicesPerWindow int64) (Window, bool) {
	slices := make([]*Slice, 0, slicesPerWindow)
	for end := ws + (we-ws)/slicesPerWindow; end <= we; end += (we - ws) / slicesPerWindow {
		sl, ok := g.bySliceEnd[end]
		if !ok {
			return Window{}, false
		}
		slices = append(slices, sl)
	}
	keyed := len(slices) > 0 && slices[0].Keyed
	win := Window{Start: ws, End: we, Keyed: keyed}
	if keyed {
		merged := map[any]any{}
		order := []any{}
		for _, sl := range slices {
			for _, e := range sl.Entries() {
				if acc, ok := merged[e.Key]; ok {
					merged[e.Key] = g.agg.Merge(acc, e.Acc)
				} else {
					merged[e.Key] = e.Acc
					order = append(order, e.Key)
				}
			}
		}
		for _, k := range order {
			win.Entries = append(win.Entries, &KeyedEntry{Key: k, Acc: g.agg.Finish(merged[k])})
		}
		return win, true
	}
	var acc any
	for _, sl := range slices {
		if sl.NonKeyed() == nil {
			continue
		}
		if acc == nil {
			acc = sl.NonKeyed()
		} else {
			acc = g.agg.Merge(acc, sl.NonKeyed())
		}
	}
	if acc == nil {
		acc = g.agg.Init()
	}
	win.NonKeyed = g.agg.Finish(acc)
	return win, true
}
