package query

import (
	"time"

	"github.com/streamforge/corex/internal/ratomic"
)

// quiesceResult is the outcome of one quiescence poll, mirroring the
// teacher's cluster.QuiRes enum (aistore's XactTCB.qcb callback).
type quiesceResult int

const (
	quiActive quiesceResult = iota
	quiDone
	quiTimeout
)

// qcb is the quiescence control block behind graceful termination (spec
// §4.5 + the quiescence supplement from original_source/: a query drains
// once no buffers have arrived within a keepalive window AND the refcounted
// producer count has reached zero). Grounded directly on XactTCB's own
// qcb/Quiesce pair in the teacher's xact/xs/tcb.go: `rxlast` (last receive
// time) and `refc` (sender refcount) feed a poll callback that a Quiesce
// loop calls on an interval until it returns non-active or a hard timeout
// elapses.
type qcb struct {
	rxlast      ratomic.Int64 // UnixNano of the last buffer seen anywhere in the query
	refc        ratomic.Int32 // remaining active producers, summed over all sinks
	keepalive   time.Duration
	hardTimeout time.Duration
}

func newQCB(keepalive, hardTimeout time.Duration) *qcb {
	q := &qcb{keepalive: keepalive, hardTimeout: hardTimeout}
	q.touch()
	return q
}

// touch records buffer activity; called from the sink write path.
func (q *qcb) touch() { q.rxlast.Store(time.Now().UnixNano()) }

func (q *qcb) addProducers(n int32) int32 { return q.refc.Add(n) }

func (q *qcb) poll(total time.Duration) quiesceResult {
	since := time.Since(time.Unix(0, q.rxlast.Load()))
	if q.refc.Load() > 0 {
		if since > q.keepalive && total > q.hardTimeout {
			return quiTimeout
		}
		return quiActive
	}
	if since > q.keepalive {
		return quiDone
	}
	return quiActive
}

// wait calls poll every interval until it reports quiDone or quiTimeout,
// returning whether the query actually quiesced (false on hard timeout).
// Grounded on XactTCB.Run's `r.Quiesce(interval, r.qcb)` call.
func (q *qcb) wait(interval time.Duration) bool {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		switch q.poll(time.Since(start)) {
		case quiDone:
			return true
		case quiTimeout:
			return false
		}
	}
	return false
}
