package runtime

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
	"github.com/tidwall/buntdb"

	"github.com/streamforge/corex/internal/ratomic"
	"github.com/streamforge/corex/memsys"
)

// ChannelRegistry is the subset of the network transport a WorkerContext
// needs: resolving an outbound channel by partition id. Defined here (not
// imported from transport) to keep runtime free of a transport dependency;
// bundle.Mover (transport/bundle) satisfies it.
type ChannelRegistry interface {
	Lookup(partition string) (send func(memsys.Buffer) error, ok bool)
}

// WorkerContext is the per-thread state named in spec §2/§9: a local
// buffer pool, the network channel registry, replay storage per partition,
// and an object-refcount map. It is the *only* thread-local state the
// engine uses (spec §9 redesign: no other global singletons or TLS).
//
// Replay storage is backed by buntdb, an embedded in-memory-by-default KV
// store (teacher's go.mod), keyed by "partition|sequenceNumber" so a
// channel reset can resend buffers that were never acknowledged (spec
// §4.8.4 retry semantics).
type WorkerContext struct {
	Index   int
	// ShortID is an ephemeral, process-local id distinguishing worker
	// contexts across restarts in logs and traces — cheaper than a UUID
	// since only in-process uniqueness is needed (unlike the per-query
	// uuid.UUID in query.Manager, which must be globally unique).
	ShortID   string
	LocalPool *memsys.LocalPool
	Channels  ChannelRegistry

	replay   *buntdb.DB
	refcount sync.Map // objectID (uint64) -> *ratomic.Int32
}

// NewWorkerContext builds a worker context with n exclusive segments
// reserved from global.
func NewWorkerContext(index int, global *memsys.BufferPool, reserve int, channels ChannelRegistry) (*WorkerContext, error) {
	lp, err := memsys.NewLocalPool(global, reserve)
	if err != nil {
		return nil, errors.Wrap(err, "runtime: worker context local pool")
	}
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "runtime: worker context replay storage")
	}
	sid, err := shortid.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "runtime: worker context short id")
	}
	return &WorkerContext{Index: index, ShortID: sid, LocalPool: lp, Channels: channels, replay: db}, nil
}

// PutReplay stashes raw bytes for (partition, seq) so they can be resent
// after a channel reset.
func (w *WorkerContext) PutReplay(partition string, seq uint64, data []byte) error {
	key := replayKey(partition, seq)
	return w.replay.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
}

// GetReplay fetches previously stashed bytes, if present.
func (w *WorkerContext) GetReplay(partition string, seq uint64) (data []byte, ok bool) {
	key := replayKey(partition, seq)
	_ = w.replay.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return nil // not found
		}
		data, ok = []byte(v), true
		return nil
	})
	return data, ok
}

// DropReplay discards stashed bytes once a send has been acknowledged.
func (w *WorkerContext) DropReplay(partition string, seq uint64) {
	key := replayKey(partition, seq)
	_ = w.replay.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
}

func replayKey(partition string, seq uint64) string {
	return partition + "|" + strconv.FormatUint(seq, 10)
}

// RetainObject / ReleaseObject track refcounts for arbitrary long-lived
// objects a worker shares across stages (e.g. a cached hash-join bucket
// handle) without routing them through memsys.
func (w *WorkerContext) RetainObject(id uint64) int32 {
	v, _ := w.refcount.LoadOrStore(id, &ratomic.Int32{})
	return v.(*ratomic.Int32).Inc()
}

func (w *WorkerContext) ReleaseObject(id uint64) int32 {
	v, ok := w.refcount.Load(id)
	if !ok {
		return 0
	}
	n := v.(*ratomic.Int32).Dec()
	if n <= 0 {
		w.refcount.Delete(id)
	}
	return n
}

// Close releases the worker's local pool reserve and replay storage.
func (w *WorkerContext) Close() error {
	w.LocalPool.Destroy()
	return w.replay.Close()
}
